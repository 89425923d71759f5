package config

import (
	"os"
	"strings"
)

// StrictOpeningBalance refuses to post an opening-balance journal that does
// not balance, instead of plugging the difference into retained earnings.
//
// Set via env:
// - STRICT_OPENING_BALANCE=true (default true)
func StrictOpeningBalance() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_OPENING_BALANCE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoCreateParties controls whether missing customers/suppliers are created
// on demand during a run. Disable to surface unresolved relations as errors.
//
// Set via env:
// - MIGRATION_AUTO_CREATE_PARTIES=false
func AutoCreateParties() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MIGRATION_AUTO_CREATE_PARTIES")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
