package migration

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"github.com/shopspring/decimal"
)

type buildStatus int

const (
	buildCreated buildStatus = iota
	buildSkipped
	buildFailed
)

// buildResult is one builder's verdict for one mutation. Builders never
// propagate errors to the orchestrator; a failure is data on the run.
type buildResult struct {
	status buildStatus
	reason string
	err    error
}

func created() buildResult              { return buildResult{status: buildCreated} }
func skipped(reason string) buildResult { return buildResult{status: buildSkipped, reason: reason} }
func failed(err error) buildResult      { return buildResult{status: buildFailed, err: err} }

const defaultPaymentTermsDays = 30

// dueDateFor computes posting + payment terms with negative terms clamped
// to zero, so the due date never precedes the posting date.
func dueDateFor(postingDate time.Time, termsDays *int) time.Time {
	days := defaultPaymentTermsDays
	if termsDays != nil {
		days = *termsDays
	}
	if days < 0 {
		days = 0
	}
	return postingDate.AddDate(0, 0, days)
}

func postingDateOf(m eboekhouden.Mutation) time.Time {
	if m.PostingDate.IsZero() {
		return time.Now()
	}
	return m.PostingDate
}

// buildSalesInvoice turns one sales_invoice_issued mutation into a
// submitted Sales Invoice.
func (r *Resolver) buildSalesInvoice(ctx context.Context, m eboekhouden.Mutation) buildResult {
	if m.InvoiceNumber == "" {
		return skipped("no_invoice_number")
	}

	exists, err := salesInvoiceExists(ctx, m.InvoiceNumber)
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	customer, err := r.ResolveCustomer(ctx, m.RelationCode, m.Description)
	if err != nil {
		return failed(err)
	}

	debitTo, err := r.ResolveAccount(ctx, m.AccountCode, RoleReceivable)
	if err != nil {
		return failed(err)
	}
	if debitTo.AccountType != models.AccountTypeReceivable && debitTo.ExternalCode != "" {
		debitTo, err = models.PromoteAccountType(ctx, debitTo.ID, models.AccountTypeReceivable, models.RootTypeAsset)
		if err != nil {
			return failed(err)
		}
	}
	if debitTo.AccountType != models.AccountTypeReceivable {
		debitTo, err = r.DefaultAccount(ctx, RoleReceivable)
		if err != nil {
			return failed(err)
		}
	}

	postingDate := postingDateOf(m)
	costCenterId := 0
	if costCenter, err := models.GetDefaultCostCenter(ctx); err == nil {
		costCenterId = costCenter.ID
	}

	input := &models.NewSalesInvoice{
		ExternalInvoiceNumber: m.InvoiceNumber,
		ExternalRelationCode:  m.RelationCode,
		CustomerId:            customer.ID,
		PostingDate:           postingDate,
		DueDate:               dueDateFor(postingDate, m.PaymentTermsDays),
		DebitToAccountId:      debitTo.ID,
		CostCenterId:          costCenterId,
		Remarks:               m.Description,
	}

	for _, line := range m.Lines {
		if line.AmountExclTax.LessThanOrEqual(decimal.Zero) {
			continue
		}
		item, err := r.ResolveItem(ctx, line.CounterAccountCode, "sales", line.Description)
		if err != nil {
			return failed(err)
		}
		incomeAccount, err := r.ResolveAccount(ctx, line.CounterAccountCode, RoleIncome)
		if err != nil {
			return failed(err)
		}
		input.Details = append(input.Details, models.NewSalesInvoiceDetail{
			ItemId:          item.ID,
			Description:     line.Description,
			IncomeAccountId: incomeAccount.ID,
			Amount:          line.AmountExclTax,
			VatCode:         line.VatCode,
			VatPercent:      line.VatPercent,
		})
	}
	if len(input.Details) == 0 {
		return skipped("no_positive_lines")
	}

	invoice, err := models.CreateSalesInvoice(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitSalesInvoice(ctx, invoice.ID); err != nil {
		return failed(err)
	}
	return created()
}

// buildPurchaseInvoice mirrors buildSalesInvoice on the creditor side.
func (r *Resolver) buildPurchaseInvoice(ctx context.Context, m eboekhouden.Mutation) buildResult {
	if m.InvoiceNumber == "" {
		return skipped("no_invoice_number")
	}

	exists, err := purchaseInvoiceExists(ctx, m.InvoiceNumber)
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	supplier, err := r.ResolveSupplier(ctx, m.RelationCode, m.Description)
	if err != nil {
		return failed(err)
	}

	creditTo, err := r.ResolveAccount(ctx, m.AccountCode, RolePayable)
	if err != nil {
		return failed(err)
	}
	if creditTo.AccountType != models.AccountTypePayable && creditTo.ExternalCode != "" {
		creditTo, err = models.PromoteAccountType(ctx, creditTo.ID, models.AccountTypePayable, models.RootTypeLiability)
		if err != nil {
			return failed(err)
		}
	}
	if creditTo.AccountType != models.AccountTypePayable {
		creditTo, err = r.DefaultAccount(ctx, RolePayable)
		if err != nil {
			return failed(err)
		}
	}

	postingDate := postingDateOf(m)
	costCenterId := 0
	if costCenter, err := models.GetDefaultCostCenter(ctx); err == nil {
		costCenterId = costCenter.ID
	}

	input := &models.NewPurchaseInvoice{
		ExternalInvoiceNumber: m.InvoiceNumber,
		ExternalRelationCode:  m.RelationCode,
		SupplierId:            supplier.ID,
		PostingDate:           postingDate,
		DueDate:               dueDateFor(postingDate, m.PaymentTermsDays),
		CreditToAccountId:     creditTo.ID,
		CostCenterId:          costCenterId,
		Remarks:               m.Description,
	}

	for _, line := range m.Lines {
		if line.AmountExclTax.LessThanOrEqual(decimal.Zero) {
			continue
		}
		item, err := r.ResolveItem(ctx, line.CounterAccountCode, "purchase", line.Description)
		if err != nil {
			return failed(err)
		}
		expenseAccount, err := r.ResolveAccount(ctx, line.CounterAccountCode, RoleExpense)
		if err != nil {
			return failed(err)
		}
		input.Details = append(input.Details, models.NewPurchaseInvoiceDetail{
			ItemId:           item.ID,
			Description:      line.Description,
			ExpenseAccountId: expenseAccount.ID,
			Amount:           line.AmountExclTax,
			VatCode:          line.VatCode,
			VatPercent:       line.VatPercent,
		})
	}
	if len(input.Details) == 0 {
		return skipped("no_positive_lines")
	}

	invoice, err := models.CreatePurchaseInvoice(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitPurchaseInvoice(ctx, invoice.ID); err != nil {
		return failed(err)
	}
	return created()
}
