package migration

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
)

// The external keys that make reruns safe, per target kind:
// invoices carry external_invoice_number, payments external_mutation_id
// (or a numeric legacy reference_no), journals external_mutation_id.
// Builders probe before insert and still tolerate a duplicate-key race at
// insert time.

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func salesInvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	_, err := models.FindSalesInvoiceByExternalNumber(ctx, invoiceNumber)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func purchaseInvoiceExists(ctx context.Context, invoiceNumber string) (bool, error) {
	_, err := models.FindPurchaseInvoiceByExternalNumber(ctx, invoiceNumber)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// paymentEntryExists probes both the stable mutation key and the legacy
// numeric reference_no.
func paymentEntryExists(ctx context.Context, mutationId string, referenceNo string) (bool, error) {
	count, err := models.CountPaymentEntriesByExternalKeys(ctx, mutationId, referenceNo)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func journalEntryExists(ctx context.Context, mutationId string) (bool, error) {
	count, err := models.CountJournalEntriesByMutationId(ctx, mutationId)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
