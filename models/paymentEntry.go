package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
)

type PaymentEntry struct {
	ID                int             `gorm:"primary_key" json:"id"`
	CompanyId         string          `gorm:"index;uniqueIndex:idx_pe_external,priority:1;not null" json:"company_id"`
	SequenceNo        int64           `gorm:"not null" json:"sequence_no"`
	Name              string          `gorm:"size:50;not null" json:"name"`
	Title             string          `gorm:"size:200" json:"title"`
	PaymentType       PaymentType     `gorm:"size:10;not null" json:"payment_type"`
	PartyType         PartyType       `gorm:"size:10;not null" json:"party_type"`
	PartyId           int             `gorm:"index;not null" json:"party_id"`
	PartyName         string          `gorm:"size:150" json:"party_name"`
	PostingDate       time.Time       `gorm:"not null" json:"posting_date"`
	PaidAmount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	PaidFromAccountId int             `gorm:"not null" json:"paid_from_account_id"`
	PaidToAccountId   int             `gorm:"not null" json:"paid_to_account_id"`
	// ExternalMutationId is the upstream mutation id; unique per company
	// among non-cancelled entries (cleared on cancel).
	ExternalMutationId    *string                 `gorm:"uniqueIndex:idx_pe_external,priority:2;size:64" json:"external_mutation_id"`
	ExternalInvoiceNumber string                  `gorm:"index;size:100" json:"external_invoice_number"`
	ReferenceNo           string                  `gorm:"index;size:100" json:"reference_no"`
	Remarks               string                  `gorm:"type:text" json:"remarks"`
	Status                DocStatus               `gorm:"index;size:10;not null;default:'Draft'" json:"status"`
	References            []PaymentEntryReference `gorm:"foreignKey:PaymentEntryId" json:"references"`
	CreatedAt             time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PaymentEntryReference struct {
	ID               int             `gorm:"primary_key" json:"id"`
	PaymentEntryId   int             `gorm:"index;not null" json:"payment_entry_id"`
	ReferenceDoctype string          `gorm:"size:30;not null" json:"reference_doctype"`
	ReferenceId      int             `gorm:"index;not null" json:"reference_id"`
	ReferenceName    string          `gorm:"size:100" json:"reference_name"`
	AllocatedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_amount"`
}

type NewPaymentEntry struct {
	Title                 string                     `json:"title"`
	PaymentType           PaymentType                `json:"payment_type" binding:"required"`
	PartyType             PartyType                  `json:"party_type" binding:"required"`
	PartyId               int                        `json:"party_id" binding:"required"`
	PartyName             string                     `json:"party_name"`
	PostingDate           time.Time                  `json:"posting_date" binding:"required"`
	PaidAmount            decimal.Decimal            `json:"paid_amount"`
	PaidFromAccountId     int                        `json:"paid_from_account_id" binding:"required"`
	PaidToAccountId       int                        `json:"paid_to_account_id" binding:"required"`
	ExternalMutationId    string                     `json:"external_mutation_id"`
	ExternalInvoiceNumber string                     `json:"external_invoice_number"`
	ReferenceNo           string                     `json:"reference_no"`
	Remarks               string                     `json:"remarks"`
	References            []NewPaymentEntryReference `json:"references"`
}

type NewPaymentEntryReference struct {
	ReferenceDoctype string          `json:"reference_doctype" binding:"required"`
	ReferenceId      int             `json:"reference_id" binding:"required"`
	ReferenceName    string          `json:"reference_name"`
	AllocatedAmount  decimal.Decimal `json:"allocated_amount"`
}

func (input *NewPaymentEntry) validate(ctx context.Context, companyId string) error {
	if input.PaidAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("paid amount must be positive")
	}
	switch input.PartyType {
	case PartyTypeCustomer:
		if err := utils.ValidateResourceId[Customer](ctx, companyId, input.PartyId); err != nil {
			return errors.New("customer not found")
		}
	case PartyTypeSupplier:
		if err := utils.ValidateResourceId[Supplier](ctx, companyId, input.PartyId); err != nil {
			return errors.New("supplier not found")
		}
	default:
		return errors.New("invalid party type")
	}
	if err := validateLineAccount(ctx, companyId, input.PaidFromAccountId); err != nil {
		return err
	}
	if err := validateLineAccount(ctx, companyId, input.PaidToAccountId); err != nil {
		return err
	}
	return nil
}

func CreatePaymentEntry(ctx context.Context, input *NewPaymentEntry) (*PaymentEntry, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	references := make([]PaymentEntryReference, 0, len(input.References))
	for _, r := range input.References {
		references = append(references, PaymentEntryReference{
			ReferenceDoctype: r.ReferenceDoctype,
			ReferenceId:      r.ReferenceId,
			ReferenceName:    r.ReferenceName,
			AllocatedAmount:  r.AllocatedAmount,
		})
	}

	entry := PaymentEntry{
		CompanyId:             companyId,
		Title:                 input.Title,
		PaymentType:           input.PaymentType,
		PartyType:             input.PartyType,
		PartyId:               input.PartyId,
		PartyName:             input.PartyName,
		PostingDate:           input.PostingDate,
		PaidAmount:            input.PaidAmount,
		PaidFromAccountId:     input.PaidFromAccountId,
		PaidToAccountId:       input.PaidToAccountId,
		ExternalInvoiceNumber: input.ExternalInvoiceNumber,
		ReferenceNo:           input.ReferenceNo,
		Remarks:               input.Remarks,
		Status:                DocStatusDraft,
		References:            references,
	}
	if input.ExternalMutationId != "" {
		id := input.ExternalMutationId
		entry.ExternalMutationId = &id
	}

	seqNo, err := utils.GetSequence[PaymentEntry](ctx, companyId)
	if err != nil {
		return nil, err
	}
	entry.SequenceNo = seqNo
	entry.Name = fmt.Sprintf("PAY-%06d", seqNo)

	if utils.GetDryRunFromContext(ctx) {
		return &entry, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func SubmitPaymentEntry(ctx context.Context, id int) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	if utils.GetDryRunFromContext(ctx) {
		return nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PaymentEntry{}).
		Where("company_id = ? AND id = ? AND status = ?", companyId, id, DocStatusDraft).
		Update("status", DocStatusSubmitted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("payment entry is not in draft")
	}
	return nil
}

// CountPaymentEntriesByExternalKeys probes both the stable mutation id and
// the legacy numeric reference_no used by older imports.
func CountPaymentEntriesByExternalKeys(ctx context.Context, mutationId string, referenceNo string) (int64, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return 0, errors.New("company id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&PaymentEntry{}).
		Where("company_id = ?", companyId).
		Where("status <> ?", DocStatusCancelled)
	if referenceNo != "" {
		dbCtx = dbCtx.Where("external_mutation_id = ? OR reference_no = ?", mutationId, referenceNo)
	} else {
		dbCtx = dbCtx.Where("external_mutation_id = ?", mutationId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// allocatedAmountFor sums allocations against one document from all
// non-cancelled payment entries.
func allocatedAmountFor(ctx context.Context, referenceDoctype string, referenceId int) (decimal.Decimal, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return decimal.Zero, errors.New("company id is required")
	}

	db := config.GetDB()
	var total *decimal.Decimal
	err := db.WithContext(ctx).
		Model(&PaymentEntryReference{}).
		Select("sum(payment_entry_references.allocated_amount)").
		Joins("INNER JOIN payment_entries pe ON pe.id = payment_entry_references.payment_entry_id").
		Where("pe.company_id = ? AND pe.status <> ?", companyId, DocStatusCancelled).
		Where("payment_entry_references.reference_doctype = ? AND payment_entry_references.reference_id = ?", referenceDoctype, referenceId).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if total == nil {
		return decimal.Zero, nil
	}
	return *total, nil
}
