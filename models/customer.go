package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId string `gorm:"index;not null" json:"company_id"`
	Name      string `gorm:"index;size:150;not null" json:"name" binding:"required"`
	// ExternalCode is the upstream relation code (e.g. "C100"); unique per
	// company when present.
	ExternalCode string    `gorm:"index;size:30" json:"external_code"`
	Group        string    `gorm:"size:100" json:"group"`
	Territory    string    `gorm:"size:100" json:"territory"`
	Email        string    `gorm:"size:100" json:"email"`
	VatId        string    `gorm:"size:30" json:"vat_id"`
	// AliasOf points at the descriptively-named record when this row is a
	// legacy code-named alias kept for older runs.
	AliasOf   int       `gorm:"index" json:"alias_of"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name         string `json:"name" binding:"required"`
	ExternalCode string `json:"external_code"`
	Group        string `json:"group"`
	Territory    string `json:"territory"`
	Email        string `json:"email"`
	VatId        string `json:"vat_id"`
	AliasOf      int    `json:"alias_of"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateUnique[Customer](ctx, companyId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.ExternalCode != "" && input.AliasOf == 0 {
		if err := utils.ValidateUnique[Customer](ctx, companyId, "external_code", input.ExternalCode, 0); err != nil {
			return nil, err
		}
	}

	customer := Customer{
		CompanyId:    companyId,
		Name:         input.Name,
		ExternalCode: input.ExternalCode,
		Group:        input.Group,
		Territory:    input.Territory,
		Email:        input.Email,
		VatId:        input.VatId,
		AliasOf:      input.AliasOf,
		IsActive:     utils.NewTrue(),
	}

	if utils.GetDryRunFromContext(ctx) {
		return &customer, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByExternalCode prefers the descriptively-named record over a
// legacy alias when both carry the same code.
func GetCustomerByExternalCode(ctx context.Context, code string) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var customer Customer
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_code = ?", companyId, code).
		Order("alias_of ASC, id ASC").
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func GetCustomerByName(ctx context.Context, name string) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var customer Customer
	err := db.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Customer](ctx, companyId, id)
}
