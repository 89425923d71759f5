package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"gorm.io/gorm"
)

type Account struct {
	ID              int         `gorm:"primary_key" json:"id"`
	CompanyId       string      `gorm:"index;not null" json:"company_id"`
	Name            string      `gorm:"index;size:150;not null" json:"name" binding:"required"`
	Code            string      `gorm:"index;size:20" json:"code"`
	AccountType     AccountType `gorm:"index;size:30" json:"account_type"`
	RootType        RootType    `gorm:"index;size:10;not null;default:'Asset'" json:"root_type" binding:"required"`
	ParentAccountId int         `gorm:"index" json:"parent_account_id"`
	IsGroup         *bool       `gorm:"not null;default:false" json:"is_group"`
	Description     string      `gorm:"type:text" json:"description"`
	// ExternalCode marks accounts that originate from the upstream
	// bookkeeping; only those may be re-typed by later runs.
	ExternalCode      string    `gorm:"index;size:20" json:"external_code"`
	ExternalCategory  string    `gorm:"size:20" json:"external_category"`
	ExternalGroup     string    `gorm:"size:20" json:"external_group"`
	SystemDefaultCode string    `gorm:"index;size:3" json:"system_default_code"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name             string      `json:"name" binding:"required"`
	Code             string      `json:"code"`
	AccountType      AccountType `json:"account_type"`
	RootType         RootType    `json:"root_type" binding:"required"`
	ParentAccountId  int         `json:"parent_account_id"`
	IsGroup          *bool       `json:"is_group"`
	Description      string      `json:"description"`
	ExternalCode     string      `json:"external_code"`
	ExternalCategory string      `json:"external_category"`
	ExternalGroup    string      `json:"external_group"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewAccount) validate(ctx context.Context, companyId string, id int) error {
	if id > 0 {
		if id == input.ParentAccountId {
			return errors.New("self-parent not allowed")
		}
		if err := utils.ValidateResourceId[Account](ctx, companyId, id); err != nil {
			return err
		}
	}
	// name
	if err := utils.ValidateUnique[Account](ctx, companyId, "name", input.Name, id); err != nil {
		return err
	}

	if input.ParentAccountId > 0 {
		if err := utils.ValidateResourceId[Account](ctx, companyId, input.ParentAccountId); err != nil {
			return errors.New("parent not found")
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}

	isGroup := input.IsGroup
	if isGroup == nil {
		isGroup = utils.NewFalse()
	}

	account := Account{
		CompanyId:        companyId,
		Name:             input.Name,
		Code:             input.Code,
		AccountType:      input.AccountType,
		RootType:         input.RootType,
		ParentAccountId:  input.ParentAccountId,
		IsGroup:          isGroup,
		Description:      input.Description,
		ExternalCode:     input.ExternalCode,
		ExternalCategory: input.ExternalCategory,
		ExternalGroup:    input.ExternalGroup,
	}

	if utils.GetDryRunFromContext(ctx) {
		return &account, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// PromoteAccountType re-types an account in place. Only accounts that came
// from the upstream (ExternalCode set) may be promoted; manually created
// accounts keep whatever the operator chose.
func PromoteAccountType(ctx context.Context, id int, accountType AccountType, rootType RootType) (*Account, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	account, err := utils.FetchModel[Account](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if account.ExternalCode == "" {
		return nil, errors.New("only upstream-originated accounts can be re-typed")
	}
	if account.AccountType == accountType && account.RootType == rootType {
		return account, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"AccountType": accountType,
		"RootType":    rootType,
	}).Error
	if err != nil {
		return nil, err
	}
	account.AccountType = accountType
	account.RootType = rootType
	return account, nil
}

// MarkAccountGroup flips is_group, used by the cost-center/group pre-run fix.
func MarkAccountGroup(ctx context.Context, id int, isGroup bool) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Account{}).
		Where("company_id = ? AND id = ?", companyId, id).
		Update("is_group", isGroup).Error
}

// DeleteImportedAccounts removes every account that came from the upstream
// import, leaf and group alike. Documents keep their account ids, so this is
// only safe before any documents reference the accounts; clearing an account
// set that is already posted against orphans those documents.
func DeleteImportedAccounts(ctx context.Context) (int64, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return 0, errors.New("company id is required")
	}
	if utils.GetDryRunFromContext(ctx) {
		return 0, nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).
		Where("company_id = ? AND external_code <> ''", companyId).
		Delete(&Account{})
	return result.RowsAffected, result.Error
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Account](ctx, companyId, id)
}

// GetAccountByExternalCode looks up by (company, upstream account code).
func GetAccountByExternalCode(ctx context.Context, code string) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var account Account
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_code = ?", companyId, code).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}

func GetAccountsByType(ctx context.Context, accountType AccountType) ([]*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var results []*Account
	err := db.WithContext(ctx).
		Where("company_id = ? AND account_type = ?", companyId, accountType).
		Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetAccounts(ctx context.Context) ([]*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchAllModels[Account](ctx, companyId)
}

// FindClearingAccount returns the account unbalanced memorials book against:
// the first Temporary account, else any account whose name contains
// "clearing". Returns RecordNotFound when the company has neither.
func FindClearingAccount(ctx context.Context) (*Account, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var account Account
	err := db.WithContext(ctx).
		Where("company_id = ? AND account_type = ?", companyId, AccountTypeTemporary).
		Order("id").First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = db.WithContext(ctx).
		Where("company_id = ? AND name LIKE ?", companyId, "%clearing%").
		Where("is_group = ?", false).
		Order("id").First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}

// validateLineAccount guards invariant: every posted line references an
// existing non-group account.
func validateLineAccount(ctx context.Context, companyId string, accountId int) error {
	if accountId <= 0 {
		return fmt.Errorf("line account is required")
	}
	count, err := utils.ResourceCountWhere[Account](ctx, companyId, "id = ? AND is_group = ?", accountId, false)
	if err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("account %d not found or is a group", accountId)
	}
	return nil
}
