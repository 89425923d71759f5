package migration

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/sirupsen/logrus"
)

// PartyImportResult summarizes one relations import.
type PartyImportResult struct {
	Customers int `json:"customers"`
	Suppliers int `json:"suppliers"`
	Skipped   int `json:"skipped"`
}

// ImportRelations lands upstream relations as parties ahead of a migration
// run. The source does not type its relations, so the caller picks the
// sides; the resolver still creates missing parties on demand during a run.
func ImportRelations(ctx context.Context, source eboekhouden.Source, asCustomers bool, asSuppliers bool) (*PartyImportResult, error) {
	logger := config.GetLogger()

	relations, err := source.FetchRelations(ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(ctx, relations)
	if err != nil {
		return nil, err
	}

	result := &PartyImportResult{}
	for _, relation := range relations {
		if relation.Code == "" {
			result.Skipped++
			continue
		}

		if asCustomers {
			_, err := models.GetCustomerByExternalCode(ctx, relation.Code)
			if errors.Is(err, utils.ErrorRecordNotFound) {
				if _, err := resolver.ResolveCustomer(ctx, relation.Code, ""); err != nil {
					logger.WithFields(logrus.Fields{
						"field": "relations_import",
						"code":  relation.Code,
					}).Warn(err.Error())
				} else {
					result.Customers++
				}
			} else if err != nil {
				return nil, err
			}
		}

		if asSuppliers {
			_, err := models.GetSupplierByExternalCode(ctx, relation.Code)
			if errors.Is(err, utils.ErrorRecordNotFound) {
				if _, err := resolver.ResolveSupplier(ctx, relation.Code, ""); err != nil {
					logger.WithFields(logrus.Fields{
						"field": "relations_import",
						"code":  relation.Code,
					}).Warn(err.Error())
				} else {
					result.Suppliers++
				}
			} else if err != nil {
				return nil, err
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"field":     "relations_import",
		"customers": result.Customers,
		"suppliers": result.Suppliers,
		"skipped":   result.Skipped,
	}).Info("relations imported")
	return result, nil
}
