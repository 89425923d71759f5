package migration

import (
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
)

func TestRunStats_Counters(t *testing.T) {
	s := NewRunStats()
	s.Created(KindSalesInvoice)
	s.Created(KindSalesInvoice)
	s.Created(KindMemorial)
	s.Skipped(KindSalesInvoice, "duplicate_entry")
	s.Skipped(KindSalesInvoice, "duplicate_entry")
	s.Skipped(KindSalesInvoice, "no_invoice_number")
	s.Failed(KindMemorial, "unbalanced", "m-12: out of balance")

	if got := s.TotalCreated(); got != 3 {
		t.Fatalf("TotalCreated = %d, want 3", got)
	}
	if got := s.TotalFailed(); got != 1 {
		t.Fatalf("TotalFailed = %d, want 1", got)
	}
	if got := s.Kinds[KindSalesInvoice].Skipped["duplicate_entry"]; got != 2 {
		t.Fatalf("duplicate_entry skips = %d, want 2", got)
	}
	if got := s.Kinds[KindMemorial].Failed; got != 1 {
		t.Fatalf("memorial failed = %d, want 1", got)
	}
}

func TestRunStats_Status(t *testing.T) {
	clean := NewRunStats()
	clean.Created(KindSalesInvoice)
	if got := clean.Status(); got != models.MigrationRunStatusSuccess {
		t.Fatalf("status = %q, want success", got)
	}

	// Skips alone never degrade the status.
	skippy := NewRunStats()
	skippy.Skipped(KindSalesInvoice, "already_imported")
	if got := skippy.Status(); got != models.MigrationRunStatusSuccess {
		t.Fatalf("status = %q, want success", got)
	}

	partial := NewRunStats()
	partial.Created(KindSalesInvoice)
	partial.Failed(KindMemorial, "unbalanced", "m-1")
	if got := partial.Status(); got != models.MigrationRunStatusPartial {
		t.Fatalf("status = %q, want partial", got)
	}

	broken := NewRunStats()
	broken.Failed(KindSalesInvoice, "unresolvable_reference", "m-1")
	if got := broken.Status(); got != models.MigrationRunStatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestRunStats_ErrorSamplesAreCapped(t *testing.T) {
	s := NewRunStats()
	for i := 0; i < 25; i++ {
		s.Failed(KindMemorial, "unbalanced", fmt.Sprintf("m-%d", i))
	}

	agg := s.Errors[KindMemorial+":unbalanced"]
	if agg == nil {
		t.Fatal("aggregate missing")
	}
	if agg.Count != 25 {
		t.Fatalf("count = %d, want 25 (counts stay exact)", agg.Count)
	}
	if len(agg.Samples) != maxErrorSamples {
		t.Fatalf("samples = %d, want %d", len(agg.Samples), maxErrorSamples)
	}
	if agg.Samples[0] != "m-0" {
		t.Fatalf("first sample = %q, want m-0", agg.Samples[0])
	}
}

func TestSplitErrorKey(t *testing.T) {
	kind, reason := splitErrorKey("memorial:unbalanced")
	if kind != "memorial" || reason != "unbalanced" {
		t.Fatalf("got (%q, %q)", kind, reason)
	}
	kind, reason = splitErrorKey("memorial")
	if kind != "memorial" || reason != "build_failed" {
		t.Fatalf("got (%q, %q)", kind, reason)
	}
}
