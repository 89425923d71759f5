package utils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

var (
	invoiceRefPattern = regexp.MustCompile(`(?i)\b(factuur(nr\.?|nummer)?|invoice|inv\.?)\s*[:#]?\s*[A-Za-z0-9/-]*\d[A-Za-z0-9/-]*`)
	datePattern       = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	multiSpacePattern = regexp.MustCompile(`\s{2,}`)
)

// CleanDescription strips invoice references, dates and separator noise from
// an upstream mutation description so it can serve as a party name.
func CleanDescription(desc string) string {
	s := invoiceRefPattern.ReplaceAllString(desc, "")
	s = datePattern.ReplaceAllString(s, "")
	s = strings.NewReplacer("|", " ", "*", " ", "\t", " ").Replace(s)
	s = multiSpacePattern.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -_,.:;")
	return strings.TrimSpace(s)
}

// RoundAmount rounds to 2 decimals, the precision used for balance checks.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinBalanceTolerance reports whether a debit/credit difference is small
// enough to be considered balanced: strictly under one cent after rounding.
// A full cent off is already an imbalance.
func WithinBalanceTolerance(diff decimal.Decimal) bool {
	return RoundAmount(diff).Abs().LessThan(decimal.NewFromFloat(0.01))
}
