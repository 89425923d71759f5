package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Factuur 20230042 Workshop april", "Workshop april"},
		{"Huur kantoor 01-05-2023", "Huur kantoor"},
		{"Bankkosten | mei * 2023-05-31", "Bankkosten mei"},
		{"  - Afschrijving inventaris -  ", "Afschrijving inventaris"},
		{"invoice #42", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanDescription(tt.in); got != tt.want {
			t.Fatalf("CleanDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWithinBalanceTolerance(t *testing.T) {
	if !WithinBalanceTolerance(decimal.NewFromFloat(0.004)) {
		t.Fatal("sub-cent difference should balance")
	}
	if WithinBalanceTolerance(decimal.NewFromFloat(0.01)) {
		t.Fatal("one cent over should not balance")
	}
	if WithinBalanceTolerance(decimal.NewFromFloat(-0.01)) {
		t.Fatal("one cent short should not balance")
	}
	if WithinBalanceTolerance(decimal.NewFromFloat(0.02)) {
		t.Fatal("two cents off should not balance")
	}
	if !WithinBalanceTolerance(decimal.Zero) {
		t.Fatal("zero difference should balance")
	}

	// Debits of 100.01 against a credit of 100.00 leave exactly one cent and
	// must be reported as unbalanced, not silently posted.
	diff := decimal.NewFromFloat(100.01).Sub(decimal.NewFromFloat(100.00))
	if WithinBalanceTolerance(diff) {
		t.Fatalf("diff %s should not balance", diff)
	}
}
