package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"gorm.io/gorm"
)

// Item is a synthetic catalog entry derived from a counter account. The same
// counter account yields the same item across runs, keyed by Code.
type Item struct {
	ID                      int       `gorm:"primary_key" json:"id"`
	CompanyId               string    `gorm:"index;not null" json:"company_id"`
	Code                    string    `gorm:"index;size:50;not null" json:"code"`
	Name                    string    `gorm:"size:150;not null" json:"name"`
	Description             string    `gorm:"type:text" json:"description"`
	DefaultIncomeAccountId  int       `json:"default_income_account_id"`
	DefaultExpenseAccountId int       `json:"default_expense_account_id"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Code                    string `json:"code" binding:"required"`
	Name                    string `json:"name" binding:"required"`
	Description             string `json:"description"`
	DefaultIncomeAccountId  int    `json:"default_income_account_id"`
	DefaultExpenseAccountId int    `json:"default_expense_account_id"`
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateUnique[Item](ctx, companyId, "code", input.Code, 0); err != nil {
		return nil, err
	}

	item := Item{
		CompanyId:               companyId,
		Code:                    input.Code,
		Name:                    input.Name,
		Description:             input.Description,
		DefaultIncomeAccountId:  input.DefaultIncomeAccountId,
		DefaultExpenseAccountId: input.DefaultExpenseAccountId,
	}

	if utils.GetDryRunFromContext(ctx) {
		return &item, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItemByCode(ctx context.Context, code string) (*Item, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var item Item
	err := db.WithContext(ctx).
		Where("company_id = ? AND code = ?", companyId, code).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}
