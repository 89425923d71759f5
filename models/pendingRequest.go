package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// PendingRequest is a follow-up task a run could not resolve on its own,
// such as confirming bank account details or reviewing a reclassified
// ledger account. Requests are materialized into review lists by a cron job.
type PendingRequest struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	CompanyId   string     `gorm:"index;not null" json:"company_id"`
	RunId       uint       `gorm:"index" json:"run_id"`
	Kind        string     `gorm:"index;size:50;not null" json:"kind"`
	Status      string     `gorm:"index;size:20;not null" json:"status"`
	PayloadJSON []byte     `gorm:"type:json" json:"payload"`
	Note        string     `gorm:"type:text" json:"note"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreatePendingRequest(ctx context.Context, kind string, payload interface{}, note string) (*PendingRequest, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	payloadJSON, err := utils.MarshalToJSON(payload)
	if err != nil {
		return nil, err
	}

	runId, _ := utils.GetRunIdFromContext(ctx)

	request := PendingRequest{
		CompanyId:   companyId,
		RunId:       runId,
		Kind:        kind,
		Status:      PendingRequestStatusOpen,
		PayloadJSON: []byte(payloadJSON),
		Note:        note,
	}

	if utils.GetDryRunFromContext(ctx) {
		return &request, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func ListOpenPendingRequests(ctx context.Context, kind string, limit int) ([]PendingRequest, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := config.GetDB()
	query := db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyId, PendingRequestStatusOpen)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var requests []PendingRequest
	if err := query.Order("id ASC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func ResolvePendingRequest(ctx context.Context, id uint, status string, note string) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	if status != PendingRequestStatusDone &&
		status != PendingRequestStatusFailed &&
		status != PendingRequestStatusAbandoned {
		return errors.New("invalid resolution status")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"resolved_at": &now,
	}
	if note != "" {
		updates["note"] = note
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PendingRequest{}).
		Where("company_id = ? AND id = ? AND status = ?", companyId, id, PendingRequestStatusOpen).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("pending request is not open")
	}
	return nil
}

// AbandonStalePendingRequests closes open requests older than the cutoff.
// Invoked from the scheduler, outside any company scope.
func AbandonStalePendingRequests(ctx context.Context, before time.Time) (int64, error) {
	now := time.Now()
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PendingRequest{}).
		Where("status = ? AND created_at < ?", PendingRequestStatusOpen, before).
		Updates(map[string]interface{}{
			"status":      PendingRequestStatusAbandoned,
			"resolved_at": &now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
