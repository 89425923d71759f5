package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

type CostCenter struct {
	ID           int       `gorm:"primary_key" json:"id"`
	CompanyId    string    `gorm:"index;not null" json:"company_id"`
	Name         string    `gorm:"index;size:150;not null" json:"name"`
	ParentId     int       `gorm:"index" json:"parent_id"`
	IsGroup      *bool     `gorm:"not null;default:false" json:"is_group"`
	ExternalCode string    `gorm:"index;size:30" json:"external_code"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetDefaultCostCenter(ctx context.Context) (*CostCenter, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var cc CostCenter
	err := db.WithContext(ctx).
		Where("company_id = ? AND is_group = ?", companyId, false).
		Order("id").First(&cc).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &cc, nil
}

// PromoteCostCenterGroups marks every cost center that has children as a
// group. Returns the number of rows promoted.
func PromoteCostCenterGroups(ctx context.Context) (int64, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return 0, errors.New("company id is required")
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Exec(`
		UPDATE cost_centers p
		SET p.is_group = 1
		WHERE p.company_id = ?
		  AND p.is_group = 0
		  AND EXISTS (SELECT 1 FROM (SELECT parent_id FROM cost_centers WHERE company_id = ?) c WHERE c.parent_id = p.id)`,
		companyId, companyId)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
