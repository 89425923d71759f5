package migration

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var numericReferencePattern = regexp.MustCompile(`^[0-9]+$`)

// paymentAmount is the absolute sum of the mutation's line amounts
// including tax.
func paymentAmount(m eboekhouden.Mutation) decimal.Decimal {
	total := decimal.Zero
	for _, line := range m.Lines {
		total = total.Add(line.AmountInclTax)
	}
	return total.Abs()
}

// legacyReferenceNo is the pre-mutation-id external key: a bare numeric
// invoice number recorded as reference_no by older imports.
func legacyReferenceNo(m eboekhouden.Mutation) string {
	if numericReferencePattern.MatchString(m.InvoiceNumber) {
		return m.InvoiceNumber
	}
	return ""
}

// bankDetailsPayload is what the review queue shows for an unreconciled
// payment awaiting manual matching.
func bankDetailsPayload(m eboekhouden.Mutation, partyType models.PartyType, partyName string, amount decimal.Decimal) map[string]interface{} {
	return map[string]interface{}{
		"external_mutation_id": m.ExternalId,
		"invoice_number":       m.InvoiceNumber,
		"party_type":           string(partyType),
		"party_name":           partyName,
		"amount":               amount.StringFixed(2),
	}
}

// queueBankDetailsReview records a follow-up for an unreconciled payment so a
// bookkeeper can confirm the party's bank details and match it by hand. Best
// effort; the payment itself is already on the books.
func queueBankDetailsReview(ctx context.Context, m eboekhouden.Mutation, partyType models.PartyType, partyName string, amount decimal.Decimal) {
	note := fmt.Sprintf("unreconciled payment for %s; confirm bank details and match manually", partyName)
	payload := bankDetailsPayload(m, partyType, partyName, amount)
	if _, err := models.CreatePendingRequest(ctx, models.PendingRequestKindBankDetails, payload, note); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":       "queueBankDetailsReview",
			"external_id": m.ExternalId,
		}).Warn("failed to queue bank details review: " + err.Error())
	}
}

// buildCustomerPayment turns one customer_payment_received mutation into a
// submitted Payment Entry, allocated against its sales invoice when the
// invoice can be found.
func (r *Resolver) buildCustomerPayment(ctx context.Context, m eboekhouden.Mutation) buildResult {
	exists, err := paymentEntryExists(ctx, m.ExternalId, "")
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	amount := paymentAmount(m)
	if amount.IsZero() {
		return skipped("zero_amount")
	}

	bank, err := r.ResolveBank(ctx, m.AccountCode)
	if err != nil {
		return failed(err)
	}

	input := &models.NewPaymentEntry{
		PaymentType:           models.PaymentTypeReceive,
		PartyType:             models.PartyTypeCustomer,
		PostingDate:           postingDateOf(m),
		PaidAmount:            amount,
		PaidToAccountId:       bank.ID,
		ExternalMutationId:    m.ExternalId,
		ExternalInvoiceNumber: m.InvoiceNumber,
		Remarks:               m.Description,
	}

	invoice, err := models.FindSalesInvoiceByExternalNumber(ctx, m.InvoiceNumber)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return failed(err)
	}

	if invoice == nil {
		// No invoice to allocate against; record the receipt unreconciled
		// so the books still balance and a human can match it later.
		customer, err := r.ResolveCustomer(ctx, m.RelationCode, m.Description)
		if err != nil {
			return failed(err)
		}
		receivable, err := r.DefaultAccount(ctx, RoleReceivable)
		if err != nil {
			return failed(err)
		}
		input.PartyId = customer.ID
		input.PartyName = customer.Name
		input.PaidFromAccountId = receivable.ID
		input.Title = fmt.Sprintf("[UNRECONCILED] Payment from %s", customer.Name)
		input.Remarks = fmt.Sprintf("unmatched invoice %q; %s", m.InvoiceNumber, m.Description)
	} else {
		customer, err := models.GetCustomer(ctx, invoice.CustomerId)
		if err != nil {
			return failed(err)
		}
		outstanding, err := models.SalesInvoiceOutstanding(ctx, invoice)
		if err != nil {
			return failed(err)
		}
		input.PartyId = customer.ID
		input.PartyName = customer.Name
		input.PaidFromAccountId = invoice.DebitToAccountId
		input.Title = fmt.Sprintf("Payment from %s", customer.Name)
		input.References = []models.NewPaymentEntryReference{{
			ReferenceDoctype: "Sales Invoice",
			ReferenceId:      invoice.ID,
			ReferenceName:    invoice.InvoiceNumber,
			AllocatedAmount:  decimal.Min(amount, outstanding),
		}}
	}

	entry, err := models.CreatePaymentEntry(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitPaymentEntry(ctx, entry.ID); err != nil {
		return failed(err)
	}
	if invoice == nil {
		queueBankDetailsReview(ctx, m, input.PartyType, input.PartyName, amount)
	}
	return created()
}

// buildSupplierPayment mirrors buildCustomerPayment for supplier_payment_sent,
// additionally probing the legacy numeric reference_no key.
func (r *Resolver) buildSupplierPayment(ctx context.Context, m eboekhouden.Mutation) buildResult {
	exists, err := paymentEntryExists(ctx, m.ExternalId, legacyReferenceNo(m))
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	amount := paymentAmount(m)
	if amount.IsZero() {
		return skipped("zero_amount")
	}

	bank, err := r.ResolveBank(ctx, m.AccountCode)
	if err != nil {
		return failed(err)
	}

	input := &models.NewPaymentEntry{
		PaymentType:           models.PaymentTypePay,
		PartyType:             models.PartyTypeSupplier,
		PostingDate:           postingDateOf(m),
		PaidAmount:            amount,
		PaidFromAccountId:     bank.ID,
		ExternalMutationId:    m.ExternalId,
		ExternalInvoiceNumber: m.InvoiceNumber,
		ReferenceNo:           legacyReferenceNo(m),
		Remarks:               m.Description,
	}

	invoice, err := models.FindPurchaseInvoiceByExternalNumber(ctx, m.InvoiceNumber)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return failed(err)
	}

	if invoice == nil {
		supplier, err := r.ResolveSupplier(ctx, m.RelationCode, m.Description)
		if err != nil {
			return failed(err)
		}
		payable, err := r.DefaultAccount(ctx, RolePayable)
		if err != nil {
			return failed(err)
		}
		input.PartyId = supplier.ID
		input.PartyName = supplier.Name
		input.PaidToAccountId = payable.ID
		input.Title = fmt.Sprintf("[UNRECONCILED] Payment to %s", supplier.Name)
		input.Remarks = fmt.Sprintf("unmatched invoice %q; %s", m.InvoiceNumber, m.Description)
	} else {
		supplier, err := models.GetSupplier(ctx, invoice.SupplierId)
		if err != nil {
			return failed(err)
		}
		outstanding, err := models.PurchaseInvoiceOutstanding(ctx, invoice)
		if err != nil {
			return failed(err)
		}
		input.PartyId = supplier.ID
		input.PartyName = supplier.Name
		input.PaidToAccountId = invoice.CreditToAccountId
		input.Title = fmt.Sprintf("Payment to %s", supplier.Name)
		input.References = []models.NewPaymentEntryReference{{
			ReferenceDoctype: "Purchase Invoice",
			ReferenceId:      invoice.ID,
			ReferenceName:    invoice.InvoiceNumber,
			AllocatedAmount:  decimal.Min(amount, outstanding),
		}}
	}

	entry, err := models.CreatePaymentEntry(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitPaymentEntry(ctx, entry.ID); err != nil {
		return failed(err)
	}
	if invoice == nil {
		queueBankDetailsReview(ctx, m, input.PartyType, input.PartyName, amount)
	}
	return created()
}
