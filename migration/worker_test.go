package migration

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

func TestStepsFor(t *testing.T) {
	full := runSteps{coa: true, relations: true, transactions: true}

	for _, modulesJSON := range []string{"", `[]`, `not json`, `["bogus"]`} {
		got := stepsFor(&models.MigrationRun{ModulesJSON: []byte(modulesJSON)})
		if got.coa != full.coa || got.relations != full.relations || got.transactions != full.transactions || got.kinds != nil {
			t.Fatalf("modules %q should mean a full run, got %+v", modulesJSON, got)
		}
	}

	got := stepsFor(&models.MigrationRun{ModulesJSON: []byte(`["coa"]`)})
	if !got.coa || got.relations || got.transactions {
		t.Fatalf("coa only, got %+v", got)
	}

	got = stepsFor(&models.MigrationRun{ModulesJSON: []byte(`["Relations", " transactions "]`)})
	if got.coa || !got.relations || !got.transactions || got.kinds != nil {
		t.Fatalf("relations plus unfiltered transactions, got %+v", got)
	}

	// Kind aliases imply the transaction step with a filter.
	got = stepsFor(&models.MigrationRun{ModulesJSON: []byte(`["fv", "Memoriaal", "bogus"]`)})
	if got.coa || got.relations || !got.transactions {
		t.Fatalf("kind filter should only enable transactions, got %+v", got)
	}
	if len(got.kinds) != 2 || !got.kinds[KindSalesInvoice] || !got.kinds[KindMemorial] {
		t.Fatalf("kinds = %v", got.kinds)
	}
}

func TestDateWindow(t *testing.T) {
	from, to := dateWindow(map[string]string{})
	if from != nil || to != nil {
		t.Fatal("no settings should give an open window")
	}

	from, to = dateWindow(map[string]string{"from_date": "2019-01-01", "to_date": "31-12-2023"})
	if from == nil || !from.Equal(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", from)
	}
	if to == nil || !to.Equal(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("to = %v", to)
	}

	from, to = dateWindow(map[string]string{"from_date": "soon"})
	if from != nil {
		t.Fatalf("unparseable from_date should be ignored, got %v", from)
	}
	if to != nil {
		t.Fatalf("to = %v", to)
	}
}

func TestFailureReason(t *testing.T) {
	if got := failureReason(utils.ErrorUnresolvableReference); got != "unresolvable_reference" {
		t.Fatalf("got %q", got)
	}
	if got := failureReason(utils.ErrorUpstreamUnavailable); got != "upstream_unavailable" {
		t.Fatalf("got %q", got)
	}
	// Wrapped causes still classify.
	wrapped := errors.Join(errors.New("relation D042"), utils.ErrorUnresolvableReference)
	if got := failureReason(wrapped); got != "unresolvable_reference" {
		t.Fatalf("wrapped got %q", got)
	}
	if got := failureReason(errors.New("boom")); got != "build_failed" {
		t.Fatalf("got %q", got)
	}
}

func TestRecord(t *testing.T) {
	stats := NewRunStats()
	record(stats, KindSalesInvoice, "m-1", created())
	record(stats, KindSalesInvoice, "m-2", skipped("duplicate_entry"))
	record(stats, KindSalesInvoice, "m-3", failed(utils.ErrorUnresolvableReference))

	ks := stats.Kinds[KindSalesInvoice]
	if ks.Created != 1 || ks.Skipped["duplicate_entry"] != 1 || ks.Failed != 1 {
		t.Fatalf("stats = %+v", ks)
	}
	agg := stats.Errors[KindSalesInvoice+":unresolvable_reference"]
	if agg == nil || agg.Count != 1 {
		t.Fatalf("error aggregate = %+v", agg)
	}
	if agg.Samples[0] != "m-3: "+utils.ErrorUnresolvableReference.Error() {
		t.Fatalf("sample = %q", agg.Samples[0])
	}
}

func TestConnectionSettings(t *testing.T) {
	t.Setenv("EB_TEST_TOKEN", "s3cret")

	conn := &models.SourceConnection{
		AuthType:      "api_token",
		AuthSecretRef: "EB_TEST_TOKEN",
		SettingsJSON:  []byte(`{"from_date": "2020-01-01"}`),
	}
	settings, err := ConnectionSettings(conn)
	if err != nil {
		t.Fatalf("ConnectionSettings: %v", err)
	}
	if settings["api_token"] != "s3cret" {
		t.Fatalf("api_token = %q", settings["api_token"])
	}
	if settings["from_date"] != "2020-01-01" {
		t.Fatalf("from_date = %q", settings["from_date"])
	}

	conn.AuthType = "soap"
	settings, err = ConnectionSettings(conn)
	if err != nil {
		t.Fatalf("ConnectionSettings: %v", err)
	}
	if settings["security_code_1"] != "s3cret" {
		t.Fatalf("security_code_1 = %q", settings["security_code_1"])
	}

	if _, err := ConnectionSettings(&models.SourceConnection{SettingsJSON: []byte(`{`)}); err == nil {
		t.Fatal("broken settings should error")
	}
}
