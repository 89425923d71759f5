package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseInvoice struct {
	ID                    int                     `gorm:"primary_key" json:"id"`
	CompanyId             string                  `gorm:"index;uniqueIndex:idx_pi_external,priority:1;not null" json:"company_id"`
	SequenceNo            int64                   `gorm:"not null" json:"sequence_no"`
	InvoiceNumber         string                  `gorm:"size:50;not null" json:"invoice_number"`
	ExternalInvoiceNumber *string                 `gorm:"uniqueIndex:idx_pi_external,priority:2;size:100" json:"external_invoice_number"`
	ExternalRelationCode  string                  `gorm:"size:30" json:"external_relation_code"`
	SupplierId            int                     `gorm:"index;not null" json:"supplier_id"`
	PostingDate           time.Time               `gorm:"not null" json:"posting_date"`
	DueDate               time.Time               `gorm:"not null" json:"due_date"`
	CreditToAccountId     int                     `gorm:"not null" json:"credit_to_account_id"`
	CostCenterId          int                     `json:"cost_center_id"`
	Status                DocStatus               `gorm:"index;size:10;not null;default:'Draft'" json:"status"`
	TotalAmount           decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remarks               string                  `gorm:"type:text" json:"remarks"`
	Details               []PurchaseInvoiceDetail `gorm:"foreignKey:PurchaseInvoiceId" json:"details"`
	CreatedAt             time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	ItemId            int             `gorm:"index" json:"item_id"`
	Description       string          `gorm:"size:255" json:"description"`
	ExpenseAccountId  int             `gorm:"not null" json:"expense_account_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	VatCode           string          `gorm:"size:20" json:"vat_code"`
	VatPercent        decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"vat_percent"`
}

type NewPurchaseInvoice struct {
	ExternalInvoiceNumber string                     `json:"external_invoice_number" binding:"required"`
	ExternalRelationCode  string                     `json:"external_relation_code"`
	SupplierId            int                        `json:"supplier_id" binding:"required"`
	PostingDate           time.Time                  `json:"posting_date" binding:"required"`
	DueDate               time.Time                  `json:"due_date" binding:"required"`
	CreditToAccountId     int                        `json:"credit_to_account_id" binding:"required"`
	CostCenterId          int                        `json:"cost_center_id"`
	Remarks               string                     `json:"remarks"`
	Details               []NewPurchaseInvoiceDetail `json:"details"`
}

type NewPurchaseInvoiceDetail struct {
	ItemId           int             `json:"item_id"`
	Description      string          `json:"description"`
	ExpenseAccountId int             `json:"expense_account_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	VatCode          string          `json:"vat_code"`
	VatPercent       decimal.Decimal `json:"vat_percent"`
}

func (input *NewPurchaseInvoice) validate(ctx context.Context, companyId string) error {
	if len(input.Details) == 0 {
		return errors.New("invoice requires at least one line")
	}
	if input.DueDate.Before(input.PostingDate) {
		return errors.New("due date before posting date")
	}
	if err := utils.ValidateResourceId[Supplier](ctx, companyId, input.SupplierId); err != nil {
		return errors.New("supplier not found")
	}

	creditTo, err := utils.FetchModel[Account](ctx, companyId, input.CreditToAccountId)
	if err != nil {
		return errors.New("credit account not found")
	}
	if creditTo.AccountType != AccountTypePayable {
		return fmt.Errorf("credit account %q is not a payable", creditTo.Name)
	}
	if creditTo.IsGroup != nil && *creditTo.IsGroup {
		return fmt.Errorf("credit account %q is a group", creditTo.Name)
	}

	for _, d := range input.Details {
		if err := validateLineAccount(ctx, companyId, d.ExpenseAccountId); err != nil {
			return err
		}
	}
	return nil
}

func CreatePurchaseInvoice(ctx context.Context, input *NewPurchaseInvoice) (*PurchaseInvoice, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	total := decimal.Zero
	details := make([]PurchaseInvoiceDetail, 0, len(input.Details))
	for _, d := range input.Details {
		total = total.Add(d.Amount)
		details = append(details, PurchaseInvoiceDetail{
			ItemId:           d.ItemId,
			Description:      d.Description,
			ExpenseAccountId: d.ExpenseAccountId,
			Amount:           d.Amount,
			VatCode:          d.VatCode,
			VatPercent:       d.VatPercent,
		})
	}

	externalNumber := input.ExternalInvoiceNumber
	invoice := PurchaseInvoice{
		CompanyId:             companyId,
		ExternalInvoiceNumber: &externalNumber,
		ExternalRelationCode:  input.ExternalRelationCode,
		SupplierId:            input.SupplierId,
		PostingDate:           input.PostingDate,
		DueDate:               input.DueDate,
		CreditToAccountId:     input.CreditToAccountId,
		CostCenterId:          input.CostCenterId,
		Status:                DocStatusDraft,
		TotalAmount:           total,
		Remarks:               input.Remarks,
		Details:               details,
	}

	seqNo, err := utils.GetSequence[PurchaseInvoice](ctx, companyId)
	if err != nil {
		return nil, err
	}
	invoice.SequenceNo = seqNo
	invoice.InvoiceNumber = fmt.Sprintf("PINV-%06d", seqNo)

	if utils.GetDryRunFromContext(ctx) {
		return &invoice, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func SubmitPurchaseInvoice(ctx context.Context, id int) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	if utils.GetDryRunFromContext(ctx) {
		return nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PurchaseInvoice{}).
		Where("company_id = ? AND id = ? AND status = ?", companyId, id, DocStatusDraft).
		Update("status", DocStatusSubmitted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("invoice is not in draft")
	}
	return nil
}

func FindPurchaseInvoiceByExternalNumber(ctx context.Context, externalNumber string) (*PurchaseInvoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var invoice PurchaseInvoice
	err := db.WithContext(ctx).
		Where("company_id = ? AND external_invoice_number = ?", companyId, externalNumber).
		Where("status <> ?", DocStatusCancelled).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func PurchaseInvoiceOutstanding(ctx context.Context, invoice *PurchaseInvoice) (decimal.Decimal, error) {
	allocated, err := allocatedAmountFor(ctx, "Purchase Invoice", invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return invoice.TotalAmount.Sub(allocated), nil
}
