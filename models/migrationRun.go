package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"gorm.io/gorm"
)

type SourceConnection struct {
	ID               uint       `gorm:"primary_key" json:"id"`
	CompanyId        string     `gorm:"index;not null" json:"company_id"`
	Provider         string     `gorm:"index;size:50;not null" json:"provider"`
	Status           string     `gorm:"size:20;not null" json:"status"`
	AuthType         string     `gorm:"size:20" json:"auth_type"`
	AuthSecretRef    string     `gorm:"type:text" json:"auth_secret_ref"`
	AdministrationId string     `gorm:"size:100" json:"administration_id"`
	SettingsJSON     []byte     `gorm:"type:json" json:"settings"`
	LastRunAt        *time.Time `json:"last_run_at"`
	LastSuccessRunAt *time.Time `json:"last_success_run_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type MigrationRun struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	CompanyId    string     `gorm:"index;not null" json:"company_id"`
	ConnectionId uint       `gorm:"index;not null" json:"connection_id"`
	Provider     string     `gorm:"index;size:50;not null" json:"provider"`
	Status       string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy  string     `gorm:"size:20" json:"triggered_by"`
	ModulesJSON  []byte     `gorm:"type:json" json:"modules"`
	StatsJSON    []byte     `gorm:"type:json" json:"stats"`
	RecordsBuilt int        `json:"records_built"`
	ErrorCount   int        `json:"error_count"`
	ParentRunId  *uint      `gorm:"index" json:"parent_run_id"`
	DryRun       bool       `gorm:"not null;default:false" json:"dry_run"`

	// ClearExistingAccounts removes previously imported accounts before the
	// chart-of-accounts step. Meant for re-runs before any documents exist.
	ClearExistingAccounts bool `gorm:"not null;default:false" json:"clear_existing_accounts"`

	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	DurationMs int64      `json:"duration_ms"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type MigrationError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       uint      `gorm:"index;not null" json:"run_id"`
	CompanyId   string    `gorm:"index;not null" json:"company_id"`
	EntityType  string    `gorm:"size:50" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewMigrationRun struct {
	ConnectionId          uint     `json:"connection_id" binding:"required"`
	TriggeredBy           string   `json:"triggered_by"`
	Modules               []string `json:"modules"`
	ParentRunId           *uint    `json:"parent_run_id"`
	DryRun                bool     `json:"dry_run"`
	ClearExistingAccounts bool     `json:"clear_existing_accounts"`
}

func GetSourceConnection(ctx context.Context, id uint) (*SourceConnection, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	var conn SourceConnection
	db := config.GetDB()
	err := db.WithContext(ctx).Where("company_id = ?", companyId).First(&conn, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &conn, nil
}

func GetActiveSourceConnection(ctx context.Context, provider string) (*SourceConnection, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	var conn SourceConnection
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("company_id = ? AND provider = ? AND status = ?", companyId, provider, SourceStatusConnected).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &conn, nil
}

func CreateMigrationRun(ctx context.Context, input *NewMigrationRun) (*MigrationRun, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	conn, err := GetSourceConnection(ctx, input.ConnectionId)
	if err != nil {
		return nil, err
	}

	triggeredBy := input.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = MigrationTriggeredManual
	}

	modulesJSON, err := utils.MarshalToJSON(input.Modules)
	if err != nil {
		return nil, err
	}

	run := MigrationRun{
		CompanyId:             companyId,
		ConnectionId:          conn.ID,
		Provider:              conn.Provider,
		Status:                MigrationRunStatusQueued,
		TriggeredBy:           triggeredBy,
		ModulesJSON:           []byte(modulesJSON),
		ParentRunId:           input.ParentRunId,
		DryRun:                input.DryRun,
		ClearExistingAccounts: input.ClearExistingAccounts,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func GetMigrationRun(ctx context.Context, id uint) (*MigrationRun, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	var run MigrationRun
	db := config.GetDB()
	err := db.WithContext(ctx).Where("company_id = ?", companyId).First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func ListMigrationRuns(ctx context.Context, limit int) ([]MigrationRun, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []MigrationRun
	db := config.GetDB()
	err := db.WithContext(ctx).Where("company_id = ?", companyId).
		Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func ListMigrationErrors(ctx context.Context, runId uint, limit int) ([]MigrationError, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var errs []MigrationError
	db := config.GetDB()
	err := db.WithContext(ctx).Where("company_id = ? AND run_id = ?", companyId, runId).
		Order("id ASC").Limit(limit).Find(&errs).Error
	if err != nil {
		return nil, err
	}
	return errs, nil
}

func MarkConnectionRunStarted(ctx context.Context, connectionId uint, at time.Time) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&SourceConnection{}).
		Where("id = ?", connectionId).
		Update("last_run_at", at).Error
}

func MarkConnectionRunSucceeded(ctx context.Context, connectionId uint, at time.Time) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&SourceConnection{}).
		Where("id = ?", connectionId).
		Update("last_success_run_at", at).Error
}
