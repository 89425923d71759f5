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

type SalesInvoice struct {
	ID            int    `gorm:"primary_key" json:"id"`
	CompanyId     string `gorm:"index;uniqueIndex:idx_si_external,priority:1;not null" json:"company_id"`
	SequenceNo    int64  `gorm:"not null" json:"sequence_no"`
	InvoiceNumber string `gorm:"size:50;not null" json:"invoice_number"`
	// ExternalInvoiceNumber is the upstream invoice number; unique per
	// company among non-cancelled invoices (cleared on cancel).
	ExternalInvoiceNumber *string              `gorm:"uniqueIndex:idx_si_external,priority:2;size:100" json:"external_invoice_number"`
	ExternalRelationCode  string               `gorm:"size:30" json:"external_relation_code"`
	CustomerId            int                  `gorm:"index;not null" json:"customer_id"`
	PostingDate           time.Time            `gorm:"not null" json:"posting_date"`
	DueDate               time.Time            `gorm:"not null" json:"due_date"`
	DebitToAccountId      int                  `gorm:"not null" json:"debit_to_account_id"`
	CostCenterId          int                  `json:"cost_center_id"`
	Status                DocStatus            `gorm:"index;size:10;not null;default:'Draft'" json:"status"`
	TotalAmount           decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remarks               string               `gorm:"type:text" json:"remarks"`
	Details               []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	CreatedAt             time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId  int             `gorm:"index;not null" json:"sales_invoice_id"`
	ItemId          int             `gorm:"index" json:"item_id"`
	Description     string          `gorm:"size:255" json:"description"`
	IncomeAccountId int             `gorm:"not null" json:"income_account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	VatCode         string          `gorm:"size:20" json:"vat_code"`
	VatPercent      decimal.Decimal `gorm:"type:decimal(8,4);default:0" json:"vat_percent"`
}

type NewSalesInvoice struct {
	ExternalInvoiceNumber string                  `json:"external_invoice_number" binding:"required"`
	ExternalRelationCode  string                  `json:"external_relation_code"`
	CustomerId            int                     `json:"customer_id" binding:"required"`
	PostingDate           time.Time               `json:"posting_date" binding:"required"`
	DueDate               time.Time               `json:"due_date" binding:"required"`
	DebitToAccountId      int                     `json:"debit_to_account_id" binding:"required"`
	CostCenterId          int                     `json:"cost_center_id"`
	Remarks               string                  `json:"remarks"`
	Details               []NewSalesInvoiceDetail `json:"details"`
}

type NewSalesInvoiceDetail struct {
	ItemId          int             `json:"item_id"`
	Description     string          `json:"description"`
	IncomeAccountId int             `json:"income_account_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	VatCode         string          `json:"vat_code"`
	VatPercent      decimal.Decimal `json:"vat_percent"`
}

func (input *NewSalesInvoice) validate(ctx context.Context, companyId string) error {
	if len(input.Details) == 0 {
		return errors.New("invoice requires at least one line")
	}
	if input.DueDate.Before(input.PostingDate) {
		return errors.New("due date before posting date")
	}
	if err := utils.ValidateResourceId[Customer](ctx, companyId, input.CustomerId); err != nil {
		return errors.New("customer not found")
	}

	// debit side must be a non-group receivable
	debitTo, err := utils.FetchModel[Account](ctx, companyId, input.DebitToAccountId)
	if err != nil {
		return errors.New("debit account not found")
	}
	if debitTo.AccountType != AccountTypeReceivable {
		return fmt.Errorf("debit account %q is not a receivable", debitTo.Name)
	}
	if debitTo.IsGroup != nil && *debitTo.IsGroup {
		return fmt.Errorf("debit account %q is a group", debitTo.Name)
	}

	for _, d := range input.Details {
		if err := validateLineAccount(ctx, companyId, d.IncomeAccountId); err != nil {
			return err
		}
	}
	return nil
}

func CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice) (*SalesInvoice, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	total := decimal.Zero
	details := make([]SalesInvoiceDetail, 0, len(input.Details))
	for _, d := range input.Details {
		total = total.Add(d.Amount)
		details = append(details, SalesInvoiceDetail{
			ItemId:          d.ItemId,
			Description:     d.Description,
			IncomeAccountId: d.IncomeAccountId,
			Amount:          d.Amount,
			VatCode:         d.VatCode,
			VatPercent:      d.VatPercent,
		})
	}

	externalNumber := input.ExternalInvoiceNumber
	invoice := SalesInvoice{
		CompanyId:             companyId,
		ExternalInvoiceNumber: &externalNumber,
		ExternalRelationCode:  input.ExternalRelationCode,
		CustomerId:            input.CustomerId,
		PostingDate:           input.PostingDate,
		DueDate:               input.DueDate,
		DebitToAccountId:      input.DebitToAccountId,
		CostCenterId:          input.CostCenterId,
		Status:                DocStatusDraft,
		TotalAmount:           total,
		Remarks:               input.Remarks,
		Details:               details,
	}

	seqNo, err := utils.GetSequence[SalesInvoice](ctx, companyId)
	if err != nil {
		return nil, err
	}
	invoice.SequenceNo = seqNo
	invoice.InvoiceNumber = fmt.Sprintf("SINV-%06d", seqNo)

	if utils.GetDryRunFromContext(ctx) {
		return &invoice, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// SubmitSalesInvoice moves a draft to Submitted; submitted docs are immutable.
func SubmitSalesInvoice(ctx context.Context, id int) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	if utils.GetDryRunFromContext(ctx) {
		return nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&SalesInvoice{}).
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

// FindSalesInvoiceByExternalNumber returns the non-cancelled invoice bearing
// the upstream invoice number, or RecordNotFound.
func FindSalesInvoiceByExternalNumber(ctx context.Context, externalNumber string) (*SalesInvoice, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	db := config.GetDB()
	var invoice SalesInvoice
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

// SalesInvoiceOutstanding is the invoice total minus allocations from
// non-cancelled payment entries.
func SalesInvoiceOutstanding(ctx context.Context, invoice *SalesInvoice) (decimal.Decimal, error) {
	allocated, err := allocatedAmountFor(ctx, "Sales Invoice", invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return invoice.TotalAmount.Sub(allocated), nil
}
