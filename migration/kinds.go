package migration

import (
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
)

// Canonical mutation kinds, one per document builder.
const (
	KindSalesInvoice    = "sales_invoice_issued"
	KindPurchaseInvoice = "purchase_invoice_received"
	KindCustomerPayment = "customer_payment_received"
	KindSupplierPayment = "supplier_payment_sent"
	KindMoneyReceived   = "money_received"
	KindMoneySpent      = "money_spent"
	KindMemorial        = "memorial"
	KindOpeningBalance  = "opening_balance"
)

// kindAliases maps every kind spelling the source emits, Dutch names from
// the SOAP surface and abbreviations seen in exports, onto the canonical
// kind. Lookup is case-insensitive.
var kindAliases = map[string]string{
	"sales_invoice_issued":      KindSalesInvoice,
	"factuurverstuurd":          KindSalesInvoice,
	"factuur verstuurd":         KindSalesInvoice,
	"fv":                        KindSalesInvoice,

	"purchase_invoice_received": KindPurchaseInvoice,
	"factuurontvangen":          KindPurchaseInvoice,
	"factuur ontvangen":         KindPurchaseInvoice,
	"fo":                        KindPurchaseInvoice,

	"customer_payment_received":   KindCustomerPayment,
	"factuurbetalingontvangen":    KindCustomerPayment,
	"factuurbetaling ontvangen":   KindCustomerPayment,
	"fbo":                         KindCustomerPayment,

	"supplier_payment_sent":       KindSupplierPayment,
	"factuurbetalingverstuurd":    KindSupplierPayment,
	"factuurbetaling verstuurd":   KindSupplierPayment,
	"fbv":                         KindSupplierPayment,

	"money_received":  KindMoneyReceived,
	"geldontvangen":   KindMoneyReceived,
	"geld ontvangen":  KindMoneyReceived,
	"go":              KindMoneyReceived,

	"money_spent":     KindMoneySpent,
	"gelduitgegeven":  KindMoneySpent,
	"geld uitgegeven": KindMoneySpent,
	"gu":              KindMoneySpent,

	"memorial":  KindMemorial,
	"memoriaal": KindMemorial,
	"mem":       KindMemorial,

	"opening_balance": KindOpeningBalance,
	"beginbalans":     KindOpeningBalance,
	"bb":              KindOpeningBalance,
}

// NormalizeKind maps a raw kind tag to its canonical kind. The second return
// is false for kinds outside the dictionary; those are never guessed.
func NormalizeKind(raw string) (string, bool) {
	canonical, ok := kindAliases[strings.ToLower(strings.TrimSpace(raw))]
	return canonical, ok
}

// dispatchOrder is fixed: payments allocate against invoices, so invoices
// must land first.
var dispatchOrder = []string{
	KindSalesInvoice,
	KindPurchaseInvoice,
	KindCustomerPayment,
	KindSupplierPayment,
	KindMoneyReceived,
	KindMoneySpent,
	KindMemorial,
	KindOpeningBalance,
}

// PartitionByKind buckets mutations by canonical kind. Mutations with an
// unknown kind land in the second return preserving fetch order.
func PartitionByKind(mutations []eboekhouden.Mutation) (map[string][]eboekhouden.Mutation, []eboekhouden.Mutation) {
	partitions := make(map[string][]eboekhouden.Mutation)
	var unknown []eboekhouden.Mutation
	for _, m := range mutations {
		kind, ok := NormalizeKind(m.Kind)
		if !ok {
			unknown = append(unknown, m)
			continue
		}
		partitions[kind] = append(partitions[kind], m)
	}
	return partitions, unknown
}
