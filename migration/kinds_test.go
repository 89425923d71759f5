package migration

import (
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
)

func TestNormalizeKind(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"FactuurVerstuurd", KindSalesInvoice, true},
		{"factuur verstuurd", KindSalesInvoice, true},
		{"FV", KindSalesInvoice, true},
		{"FactuurOntvangen", KindPurchaseInvoice, true},
		{"FactuurbetalingOntvangen", KindCustomerPayment, true},
		{"fbo", KindCustomerPayment, true},
		{"FactuurbetalingVerstuurd", KindSupplierPayment, true},
		{"GeldOntvangen", KindMoneyReceived, true},
		{"GeldUitgegeven", KindMoneySpent, true},
		{"Memoriaal", KindMemorial, true},
		{"BeginBalans", KindOpeningBalance, true},
		{" bb ", KindOpeningBalance, true},
		{"sales_invoice_issued", KindSalesInvoice, true},
		{"verkoopfactuur", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeKind(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizeKind(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPartitionByKind(t *testing.T) {
	mutations := []eboekhouden.Mutation{
		{ExternalId: "1", Kind: "FactuurVerstuurd"},
		{ExternalId: "2", Kind: "GeldOntvangen"},
		{ExternalId: "3", Kind: "iets onbekends"},
		{ExternalId: "4", Kind: "fv"},
		{ExternalId: "5", Kind: "nog een rare"},
	}

	partitions, unknown := PartitionByKind(mutations)

	if got := len(partitions[KindSalesInvoice]); got != 2 {
		t.Fatalf("expected 2 sales invoices, got %d", got)
	}
	if got := len(partitions[KindMoneyReceived]); got != 1 {
		t.Fatalf("expected 1 money_received, got %d", got)
	}
	if len(unknown) != 2 {
		t.Fatalf("expected 2 unknown mutations, got %d", len(unknown))
	}
	// Fetch order is preserved inside each bucket.
	if unknown[0].ExternalId != "3" || unknown[1].ExternalId != "5" {
		t.Fatalf("unknown order broken: %s, %s", unknown[0].ExternalId, unknown[1].ExternalId)
	}
	if partitions[KindSalesInvoice][0].ExternalId != "1" {
		t.Fatalf("bucket order broken")
	}
}

func TestDispatchOrder_InvoicesBeforePayments(t *testing.T) {
	pos := map[string]int{}
	for i, kind := range dispatchOrder {
		pos[kind] = i
	}
	if pos[KindSalesInvoice] >= pos[KindCustomerPayment] {
		t.Fatalf("sales invoices must be built before customer payments")
	}
	if pos[KindPurchaseInvoice] >= pos[KindSupplierPayment] {
		t.Fatalf("purchase invoices must be built before supplier payments")
	}
	if pos[KindOpeningBalance] != len(dispatchOrder)-1 {
		t.Fatalf("opening balance must be dispatched last")
	}
}
