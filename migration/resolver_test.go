package migration

import (
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
)

func TestComposePartyName(t *testing.T) {
	full := &eboekhouden.Relation{
		CompanyName:   "Bakkerij Jansen BV",
		ContactPerson: "P. Jansen",
		Name:          "Jansen",
	}
	if got := composePartyName(models.PartyTypeCustomer, "D001", "factuur 42", full); got != "Bakkerij Jansen BV" {
		t.Fatalf("company name should win, got %q", got)
	}

	contactOnly := &eboekhouden.Relation{ContactPerson: "P. Jansen", Name: "Jansen"}
	if got := composePartyName(models.PartyTypeCustomer, "D001", "", contactOnly); got != "P. Jansen" {
		t.Fatalf("contact person should win over name, got %q", got)
	}

	if got := composePartyName(models.PartyTypeSupplier, "C007", "Huur kantoor  (mei)", nil); got != "Huur kantoor (mei)" {
		t.Fatalf("cleaned description fallback, got %q", got)
	}

	if got := composePartyName(models.PartyTypeSupplier, "C007", "", nil); got != "Supplier C007" {
		t.Fatalf("relation code fallback, got %q", got)
	}

	// The last resort is stable so reruns land on the same record.
	if got := composePartyName(models.PartyTypeCustomer, "", "", nil); got != "E-Boekhouden Import Customer" {
		t.Fatalf("final fallback, got %q", got)
	}
}

func TestDedupePartyName(t *testing.T) {
	taken := func(names ...string) func(string) bool {
		set := map[string]bool{}
		for _, n := range names {
			set[n] = true
		}
		return func(candidate string) bool { return set[candidate] }
	}

	if got := dedupePartyName("Jansen", "D001", taken()); got != "Jansen" {
		t.Fatalf("free name kept, got %q", got)
	}
	if got := dedupePartyName("Jansen", "D001", taken("Jansen")); got != "Jansen (D001)" {
		t.Fatalf("relation code suffix, got %q", got)
	}
	if got := dedupePartyName("Jansen", "", taken("Jansen")); got != "Jansen (2)" {
		t.Fatalf("numeric suffix without code, got %q", got)
	}
	if got := dedupePartyName("Jansen", "D001", taken("Jansen", "Jansen (D001)", "Jansen (2)")); got != "Jansen (3)" {
		t.Fatalf("numeric suffix counts past collisions, got %q", got)
	}
}
