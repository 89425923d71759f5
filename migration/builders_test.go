package migration

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
)

func intPtr(n int) *int { return &n }

func TestDueDateFor(t *testing.T) {
	posting := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		terms *int
		want  time.Time
	}{
		{"nil terms use the default", nil, posting.AddDate(0, 0, 30)},
		{"explicit terms", intPtr(14), posting.AddDate(0, 0, 14)},
		{"zero terms due immediately", intPtr(0), posting},
		{"negative terms clamp to posting date", intPtr(-7), posting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := dueDateFor(posting, tc.terms)
			if !got.Equal(tc.want) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPostingDateOf(t *testing.T) {
	posting := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := postingDateOf(eboekhouden.Mutation{PostingDate: posting}); !got.Equal(posting) {
		t.Fatalf("got %s, want %s", got, posting)
	}

	before := time.Now()
	got := postingDateOf(eboekhouden.Mutation{})
	if got.Before(before) {
		t.Fatalf("zero posting date should fall back to now, got %s", got)
	}
}

func TestPaymentAmount(t *testing.T) {
	m := eboekhouden.Mutation{
		Lines: []eboekhouden.MutationLine{
			{AmountInclTax: decimal.NewFromFloat(100.50)},
			{AmountInclTax: decimal.NewFromFloat(24.50)},
		},
	}
	if got := paymentAmount(m); !got.Equal(decimal.NewFromFloat(125.00)) {
		t.Fatalf("got %s, want 125", got)
	}

	// Refund-style negative totals come back as a positive payment amount.
	neg := eboekhouden.Mutation{
		Lines: []eboekhouden.MutationLine{
			{AmountInclTax: decimal.NewFromFloat(-75.25)},
		},
	}
	if got := paymentAmount(neg); !got.Equal(decimal.NewFromFloat(75.25)) {
		t.Fatalf("got %s, want 75.25", got)
	}

	if got := paymentAmount(eboekhouden.Mutation{}); !got.IsZero() {
		t.Fatalf("no lines should mean zero, got %s", got)
	}
}

func TestBankDetailsPayload(t *testing.T) {
	m := eboekhouden.Mutation{ExternalId: "m-12", InvoiceNumber: "F-2023-9"}
	payload := bankDetailsPayload(m, models.PartyTypeSupplier, "Jansen BV", decimal.NewFromFloat(75.25))

	if payload["external_mutation_id"] != "m-12" || payload["invoice_number"] != "F-2023-9" {
		t.Fatalf("wrong mutation identity: %+v", payload)
	}
	if payload["party_type"] != "Supplier" || payload["party_name"] != "Jansen BV" {
		t.Fatalf("wrong party: %+v", payload)
	}
	if payload["amount"] != "75.25" {
		t.Fatalf("wrong amount: %+v", payload)
	}
}

func TestClearingPlug(t *testing.T) {
	clearing := &models.Account{ID: 42}

	plug, stop := clearingPlug(decimal.NewFromFloat(0.05), clearing, nil)
	if stop != nil {
		t.Fatalf("expected a plug line, got stop %+v", *stop)
	}
	if plug.AccountId != 42 || !plug.Credit.Equal(decimal.NewFromFloat(0.05)) || !plug.Debit.IsZero() {
		t.Fatalf("positive difference should credit the clearing account: %+v", plug)
	}

	plug, stop = clearingPlug(decimal.NewFromFloat(-0.05), clearing, nil)
	if stop != nil {
		t.Fatalf("expected a plug line, got stop %+v", *stop)
	}
	if !plug.Debit.Equal(decimal.NewFromFloat(0.05)) || !plug.Credit.IsZero() {
		t.Fatalf("negative difference should debit the clearing account: %+v", plug)
	}

	// No clearing account configured: skip as unbalanced.
	_, stop = clearingPlug(decimal.NewFromFloat(0.05), nil, utils.ErrorRecordNotFound)
	if stop == nil || stop.status != buildSkipped || stop.reason != "unbalanced" {
		t.Fatalf("missing clearing account should skip unbalanced, got %+v", stop)
	}

	// A lookup failure is an infrastructure error, not an imbalance.
	dbErr := errors.New("connection reset")
	_, stop = clearingPlug(decimal.NewFromFloat(0.05), nil, dbErr)
	if stop == nil || stop.status != buildFailed || !errors.Is(stop.err, dbErr) {
		t.Fatalf("lookup failure should fail the build, got %+v", stop)
	}
}

func TestLegacyReferenceNo(t *testing.T) {
	cases := []struct {
		invoiceNumber string
		want          string
	}{
		{"20230042", "20230042"},
		{"F-2023-42", ""},
		{"", ""},
		{"42a", ""},
	}
	for _, tc := range cases {
		m := eboekhouden.Mutation{InvoiceNumber: tc.invoiceNumber}
		if got := legacyReferenceNo(m); got != tc.want {
			t.Fatalf("legacyReferenceNo(%q) = %q, want %q", tc.invoiceNumber, got, tc.want)
		}
	}
}
