package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// Company is the target administration a migration run posts into. The
// default account ids behave as process-wide configuration: loaded once per
// run, cached, invalidated on run end.
type Company struct {
	ID              string    `gorm:"primary_key;size:64" json:"id"`
	Name            string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Country         string    `gorm:"size:100" json:"country"`
	FiscalYearStart time.Time `json:"fiscal_year_start"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetCompany(ctx context.Context) (*Company, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return GetCompanyById(ctx, companyId)
}

func GetCompanyById(ctx context.Context, companyId string) (*Company, error) {
	db := config.GetDB()
	var company Company
	if err := db.WithContext(ctx).Where("id = ?", companyId).First(&company).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &company, nil
}

// GetSystemAccounts returns the company's default account ids keyed by
// system default code (REC, PAY, BNK, ...). Cached in redis; invalidated
// when a run promotes or creates default accounts.
func GetSystemAccounts(ctx context.Context, companyId string) (map[string]int, error) {
	var sysAccounts map[string]int

	exists, err := config.GetRedisObject("SystemAccounts:"+companyId, &sysAccounts)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		var accounts []*Account
		if err := db.WithContext(ctx).
			Select("id", "system_default_code").
			Where("company_id = ?", companyId).
			Where("system_default_code <> ''").
			Find(&accounts).Error; err != nil {
			return nil, err
		}
		sysAccounts = make(map[string]int)
		for _, acc := range accounts {
			sysAccounts[acc.SystemDefaultCode] = acc.ID
		}
		if err := config.SetRedisObject("SystemAccounts:"+companyId, &sysAccounts, 0); err != nil {
			return nil, err
		}
	}
	return sysAccounts, nil
}

func InvalidateSystemAccounts(companyId string) error {
	return config.RemoveRedisKey("SystemAccounts:" + companyId)
}
