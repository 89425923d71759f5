// Package eboekhouden talks to the e-Boekhouden.nl administration API and
// normalizes its two wire shapes (REST JSON and legacy SOAP XML) into one
// canonical record set.
package eboekhouden

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mutation is one upstream posting event in canonical form.
type Mutation struct {
	ExternalId       string
	Kind             string
	PostingDate      time.Time
	InvoiceNumber    string
	RelationCode     string
	AccountCode      string
	Description      string
	PaymentTermsDays *int
	Lines            []MutationLine
}

type MutationLine struct {
	CounterAccountCode string
	AmountExclTax      decimal.Decimal
	AmountInclTax      decimal.Decimal
	AmountInput        decimal.Decimal
	VatCode            string
	VatPercent         decimal.Decimal
	Description        string
}

// Relation is an upstream party master record.
type Relation struct {
	Code          string
	CompanyName   string
	ContactPerson string
	Name          string
	Address       string
	PostalCode    string
	City          string
	Country       string
	VatId         string
	Email         string
}

// LedgerAccount is one upstream chart-of-accounts entry.
type LedgerAccount struct {
	Code        string
	Description string
	Category    string
	Group       string
	ParentCode  string
}

// REST JSON shapes. The v2 API returns lowercase English field names.

type restListEnvelope[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type restLedgerAccount struct {
	Id          int    `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Group       string `json:"group"`
}

type restRelation struct {
	Id            int    `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Address       string `json:"address"`
	PostalCode    string `json:"postal_code"`
	City          string `json:"city"`
	Country       string `json:"country"`
	VatNumber     string `json:"vat"`
	Email         string `json:"email"`
}

type restMutation struct {
	Id            int               `json:"id"`
	Type          string            `json:"type"`
	Date          string            `json:"date"`
	LedgerCode    string            `json:"ledger_code"`
	RelationCode  string            `json:"relation_code"`
	InvoiceNumber string            `json:"invoice_number"`
	Description   string            `json:"description"`
	PaymentTerm   *int              `json:"payment_term"`
	Rows          []restMutationRow `json:"rows"`
}

type restMutationRow struct {
	LedgerCode    string          `json:"ledger_code"`
	Description   string          `json:"description"`
	AmountExclVat decimal.Decimal `json:"amount_excl_vat"`
	AmountInclVat decimal.Decimal `json:"amount_incl_vat"`
	Amount        decimal.Decimal `json:"amount"`
	VatCode       string          `json:"vat_code"`
	VatPercent    decimal.Decimal `json:"vat_percent"`
}

// SOAP shapes carry the capitalized Dutch names of the legacy API.

type soapGrootboekrekening struct {
	ID           int    `xml:"ID"`
	Code         string `xml:"Code"`
	Omschrijving string `xml:"Omschrijving"`
	Categorie    string `xml:"Categorie"`
	Groep        string `xml:"Groep"`
}

type soapRelatie struct {
	ID       int    `xml:"ID"`
	Code     string `xml:"Code"`
	Bedrijf  string `xml:"Bedrijf"`
	Contactp string `xml:"Contactpersoon"`
	Adres    string `xml:"Adres"`
	Postcode string `xml:"Postcode"`
	Plaats   string `xml:"Plaats"`
	Land     string `xml:"Land"`
	BTWNr    string `xml:"BTWNummer"`
	Email    string `xml:"Email"`
}

type soapMutatie struct {
	MutatieNr        int               `xml:"MutatieNr"`
	Soort            string            `xml:"Soort"`
	Datum            string            `xml:"Datum"`
	Rekening         string            `xml:"Rekening"`
	RelatieCode      string            `xml:"RelatieCode"`
	Factuurnummer    string            `xml:"Factuurnummer"`
	Omschrijving     string            `xml:"Omschrijving"`
	Betalingstermijn string            `xml:"Betalingstermijn"`
	MutatieRegels    []soapMutatieRegel `xml:"MutatieRegels>cMutatieListRegel"`
}

type soapMutatieRegel struct {
	BedragInvoer     decimal.Decimal `xml:"BedragInvoer"`
	BedragExclBTW    decimal.Decimal `xml:"BedragExclBTW"`
	BedragBTW        decimal.Decimal `xml:"BedragBTW"`
	BedragInclBTW    decimal.Decimal `xml:"BedragInclBTW"`
	BTWCode          string          `xml:"BTWCode"`
	BTWPercentage    decimal.Decimal `xml:"BTWPercentage"`
	TegenrekeningCode string         `xml:"TegenrekeningCode"`
	Omschrijving     string          `xml:"Omschrijving"`
}

func (r restLedgerAccount) normalize() LedgerAccount {
	return LedgerAccount{
		Code:        strings.TrimSpace(r.Code),
		Description: strings.TrimSpace(r.Description),
		Category:    strings.ToUpper(strings.TrimSpace(r.Category)),
		Group:       strings.TrimSpace(r.Group),
	}
}

func (r soapGrootboekrekening) normalize() LedgerAccount {
	return LedgerAccount{
		Code:        strings.TrimSpace(r.Code),
		Description: strings.TrimSpace(r.Omschrijving),
		Category:    strings.ToUpper(strings.TrimSpace(r.Categorie)),
		Group:       strings.TrimSpace(r.Groep),
	}
}

func (r restRelation) normalize() Relation {
	return Relation{
		Code:          strings.TrimSpace(r.Code),
		CompanyName:   strings.TrimSpace(r.CompanyName),
		ContactPerson: strings.TrimSpace(r.ContactPerson),
		Name:          strings.TrimSpace(r.Name),
		Address:       strings.TrimSpace(r.Address),
		PostalCode:    strings.TrimSpace(r.PostalCode),
		City:          strings.TrimSpace(r.City),
		Country:       strings.TrimSpace(r.Country),
		VatId:         strings.TrimSpace(r.VatNumber),
		Email:         strings.TrimSpace(r.Email),
	}
}

func (r soapRelatie) normalize() Relation {
	return Relation{
		Code:          strings.TrimSpace(r.Code),
		CompanyName:   strings.TrimSpace(r.Bedrijf),
		ContactPerson: strings.TrimSpace(r.Contactp),
		Name:          strings.TrimSpace(r.Bedrijf),
		Address:       strings.TrimSpace(r.Adres),
		PostalCode:    strings.TrimSpace(r.Postcode),
		City:          strings.TrimSpace(r.Plaats),
		Country:       strings.TrimSpace(r.Land),
		VatId:         strings.TrimSpace(r.BTWNr),
		Email:         strings.TrimSpace(r.Email),
	}
}

func (m restMutation) normalize() Mutation {
	lines := make([]MutationLine, 0, len(m.Rows))
	for _, row := range m.Rows {
		lines = append(lines, MutationLine{
			CounterAccountCode: strings.TrimSpace(row.LedgerCode),
			AmountExclTax:      row.AmountExclVat,
			AmountInclTax:      row.AmountInclVat,
			AmountInput:        row.Amount,
			VatCode:            strings.TrimSpace(row.VatCode),
			VatPercent:         row.VatPercent,
			Description:        strings.TrimSpace(row.Description),
		})
	}
	return Mutation{
		ExternalId:       strconv.Itoa(m.Id),
		Kind:             strings.TrimSpace(m.Type),
		PostingDate:      ParseDate(m.Date),
		InvoiceNumber:    strings.TrimSpace(m.InvoiceNumber),
		RelationCode:     strings.TrimSpace(m.RelationCode),
		AccountCode:      strings.TrimSpace(m.LedgerCode),
		Description:      strings.TrimSpace(m.Description),
		PaymentTermsDays: m.PaymentTerm,
		Lines:            lines,
	}
}

func (m soapMutatie) normalize() Mutation {
	lines := make([]MutationLine, 0, len(m.MutatieRegels))
	for _, regel := range m.MutatieRegels {
		lines = append(lines, MutationLine{
			CounterAccountCode: strings.TrimSpace(regel.TegenrekeningCode),
			AmountExclTax:      regel.BedragExclBTW,
			AmountInclTax:      regel.BedragInclBTW,
			AmountInput:        regel.BedragInvoer,
			VatCode:            strings.TrimSpace(regel.BTWCode),
			VatPercent:         regel.BTWPercentage,
			Description:        strings.TrimSpace(regel.Omschrijving),
		})
	}
	mutation := Mutation{
		ExternalId:    strconv.Itoa(m.MutatieNr),
		Kind:          strings.TrimSpace(m.Soort),
		PostingDate:   ParseDate(m.Datum),
		InvoiceNumber: strings.TrimSpace(m.Factuurnummer),
		RelationCode:  strings.TrimSpace(m.RelatieCode),
		AccountCode:   strings.TrimSpace(m.Rekening),
		Description:   strings.TrimSpace(m.Omschrijving),
		Lines:         lines,
	}
	if term := strings.TrimSpace(m.Betalingstermijn); term != "" {
		if n, err := strconv.Atoi(term); err == nil {
			mutation.PaymentTermsDays = &n
		}
	}
	return mutation
}

// ParseDate accepts the date layouts the API has been seen to emit. The SOAP
// endpoint returns full timestamps, the REST endpoint bare dates. A zero time
// is returned for unparseable input; callers treat that as a record error.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02-01-2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
