package eboekhouden

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2023-04-15T00:00:00", time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"2023-04-15", time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"15-04-2023", time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"  2023-04-15 ", time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"15 april 2023", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		if got := ParseDate(tt.raw); !got.Equal(tt.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestRestMutationNormalize(t *testing.T) {
	term := 14
	m := restMutation{
		Id:            10042,
		Type:          "FactuurVerstuurd",
		Date:          "2023-04-15",
		LedgerCode:    " 1300 ",
		RelationCode:  "D001",
		InvoiceNumber: " 20230042 ",
		Description:   "Workshop april",
		PaymentTerm:   &term,
		Rows: []restMutationRow{
			{
				LedgerCode:    "8000",
				Description:   "Workshop",
				AmountExclVat: decimal.NewFromFloat(100),
				AmountInclVat: decimal.NewFromFloat(121),
				VatCode:       "HOOG_VERK_21",
				VatPercent:    decimal.NewFromFloat(21),
			},
		},
	}

	got := m.normalize()
	if got.ExternalId != "10042" {
		t.Fatalf("ExternalId = %q", got.ExternalId)
	}
	if got.Kind != "FactuurVerstuurd" {
		t.Fatalf("Kind = %q", got.Kind)
	}
	if got.AccountCode != "1300" || got.InvoiceNumber != "20230042" {
		t.Fatalf("trimming failed: %q %q", got.AccountCode, got.InvoiceNumber)
	}
	if got.PaymentTermsDays == nil || *got.PaymentTermsDays != 14 {
		t.Fatalf("PaymentTermsDays = %v", got.PaymentTermsDays)
	}
	if len(got.Lines) != 1 || got.Lines[0].CounterAccountCode != "8000" {
		t.Fatalf("Lines = %+v", got.Lines)
	}
	if !got.Lines[0].AmountInclTax.Equal(decimal.NewFromFloat(121)) {
		t.Fatalf("AmountInclTax = %s", got.Lines[0].AmountInclTax)
	}
}

func TestSoapMutatieNormalize(t *testing.T) {
	m := soapMutatie{
		MutatieNr:        77,
		Soort:            "GeldOntvangen",
		Datum:            "2022-01-31T00:00:00",
		Rekening:         "1010",
		RelatieCode:      "D002",
		Betalingstermijn: "30",
		MutatieRegels: []soapMutatieRegel{
			{
				TegenrekeningCode: "1300",
				BedragInvoer:      decimal.NewFromFloat(121),
				BedragInclBTW:     decimal.NewFromFloat(121),
			},
		},
	}

	got := m.normalize()
	if got.ExternalId != "77" || got.Kind != "GeldOntvangen" {
		t.Fatalf("got %q %q", got.ExternalId, got.Kind)
	}
	if !got.PostingDate.Equal(time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("PostingDate = %v", got.PostingDate)
	}
	if got.PaymentTermsDays == nil || *got.PaymentTermsDays != 30 {
		t.Fatalf("PaymentTermsDays = %v", got.PaymentTermsDays)
	}
	if got.Lines[0].CounterAccountCode != "1300" {
		t.Fatalf("CounterAccountCode = %q", got.Lines[0].CounterAccountCode)
	}

	// A blank payment term stays unset rather than becoming zero days.
	m.Betalingstermijn = " "
	if got := m.normalize(); got.PaymentTermsDays != nil {
		t.Fatalf("PaymentTermsDays = %v, want nil", got.PaymentTermsDays)
	}
}

func TestSoapRelatieNormalize(t *testing.T) {
	r := soapRelatie{
		Code:     " D001 ",
		Bedrijf:  "Bakkerij Jansen BV",
		Contactp: "P. Jansen",
		Land:     "NL",
	}
	got := r.normalize()
	if got.Code != "D001" || got.CompanyName != "Bakkerij Jansen BV" {
		t.Fatalf("got %+v", got)
	}
	// The legacy API has no separate display name field.
	if got.Name != "Bakkerij Jansen BV" {
		t.Fatalf("Name = %q", got.Name)
	}
}

func TestNumLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"9", "10", true},
		{"10", "9", false},
		{"100", "100", false},
		{"abc", "abd", true},
		{"9", "a9", true},
	}
	for _, tt := range tests {
		if got := numLess(tt.a, tt.b); got != tt.want {
			t.Fatalf("numLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
