package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID           int       `gorm:"primary_key" json:"id"`
	CompanyId    string    `gorm:"index;not null" json:"company_id"`
	Name         string    `gorm:"index;size:150;not null" json:"name" binding:"required"`
	ExternalCode string    `gorm:"index;size:30" json:"external_code"`
	Group        string    `gorm:"size:100" json:"group"`
	Territory    string    `gorm:"size:100" json:"territory"`
	Email        string    `gorm:"size:100" json:"email"`
	VatId        string    `gorm:"size:30" json:"vat_id"`
	AliasOf      int       `gorm:"index" json:"alias_of"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name         string `json:"name" binding:"required"`
	ExternalCode string `json:"external_code"`
	Group        string `json:"group"`
	Territory    string `json:"territory"`
	Email        string `json:"email"`
	VatId        string `json:"vat_id"`
	AliasOf      int    `json:"alias_of"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateUnique[Supplier](ctx, companyId, "name", input.Name, 0); err != nil {
		return nil, err
	}
	if input.ExternalCode != "" && input.AliasOf == 0 {
		if err := utils.ValidateUnique[Supplier](ctx, companyId, "external_code", input.ExternalCode, 0); err != nil {
			return nil, err
		}
	}

	supplier := Supplier{
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
		return &supplier, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplierByExternalCode(ctx context.Context, code string) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var supplier Supplier
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_code = ?", companyId, code).
		Order("alias_of ASC, id ASC").
		First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func GetSupplierByName(ctx context.Context, name string) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var supplier Supplier
	err := db.WithContext(ctx).
		Where("company_id = ? AND name = ?", companyId, name).
		First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Supplier](ctx, companyId, id)
}
