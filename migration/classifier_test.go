package migration

import (
	"testing"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
)

func TestClassifyLedgerAccount_Category(t *testing.T) {
	cases := []struct {
		name    string
		account eboekhouden.LedgerAccount
		want    Classification
	}{
		{
			name:    "debtors category",
			account: eboekhouden.LedgerAccount{Code: "1300", Description: "Debiteuren", Category: "DEB"},
			want:    Classification{models.AccountTypeReceivable, models.RootTypeAsset},
		},
		{
			name:    "creditors category",
			account: eboekhouden.LedgerAccount{Code: "1600", Description: "Crediteuren", Category: "CRED"},
			want:    Classification{models.AccountTypePayable, models.RootTypeLiability},
		},
		{
			name:    "vat payable category",
			account: eboekhouden.LedgerAccount{Code: "1520", Description: "Af te dragen BTW hoog", Category: "AF19"},
			want:    Classification{models.AccountTypeTax, models.RootTypeLiability},
		},
		{
			name:    "input vat is an asset",
			account: eboekhouden.LedgerAccount{Code: "1510", Description: "Voorbelasting", Category: "VOOR"},
			want:    Classification{models.AccountTypeTax, models.RootTypeAsset},
		},
		{
			name:    "financial defaults to bank",
			account: eboekhouden.LedgerAccount{Code: "1010", Description: "Rabobank betaalrekening", Category: "FIN"},
			want:    Classification{models.AccountTypeBank, models.RootTypeAsset},
		},
		{
			name:    "financial cash keyword",
			account: eboekhouden.LedgerAccount{Code: "1000", Description: "Kas", Category: "FIN"},
			want:    Classification{models.AccountTypeCash, models.RootTypeAsset},
		},
		{
			name:    "psp account stays bank despite cash-like words",
			account: eboekhouden.LedgerAccount{Code: "1015", Description: "Mollie contant geld doorstort", Category: "FIN"},
			want:    Classification{models.AccountTypeBank, models.RootTypeAsset},
		},
		{
			name:    "equity category has no account type",
			account: eboekhouden.LedgerAccount{Code: "0800", Description: "Eigen vermogen", Category: "EIG"},
			want:    Classification{"", models.RootTypeEquity},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyLedgerAccount(tc.account)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClassifyLedgerAccount_Group(t *testing.T) {
	cases := []struct {
		name    string
		account eboekhouden.LedgerAccount
		want    Classification
	}{
		{
			name:    "group 001 fixed assets",
			account: eboekhouden.LedgerAccount{Code: "0110", Description: "Inventaris en machines", Group: "001"},
			want:    Classification{models.AccountTypeFixedAsset, models.RootTypeAsset},
		},
		{
			name:    "group 002 financial bank",
			account: eboekhouden.LedgerAccount{Code: "1020", Description: "Spaarrekening", Group: "002"},
			want:    Classification{models.AccountTypeBank, models.RootTypeAsset},
		},
		{
			name:    "group 055 income",
			account: eboekhouden.LedgerAccount{Code: "8000", Description: "Omzet diensten", Group: "055"},
			want:    Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome},
		},
		{
			name:    "group 057 expense",
			account: eboekhouden.LedgerAccount{Code: "4500", Description: "Huisvesting", Group: "057"},
			want:    Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense},
		},
		{
			name:    "group 052 equity",
			account: eboekhouden.LedgerAccount{Code: "0500", Description: "Algemene reserve", Group: "052"},
			want:    Classification{"", models.RootTypeEquity},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyLedgerAccount(tc.account)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClassifyLedgerAccount_Description(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        Classification
	}{
		{
			name:        "holiday pay reserve is a liability not equity",
			description: "Reservering vakantiegeld",
			want:        Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability},
		},
		{
			name:        "plain reserve is equity",
			description: "Continuiteitsreserve reserve",
			want:        Classification{"", models.RootTypeEquity},
		},
		{
			name:        "vooruitontvangen is never a receivable",
			description: "Vooruitontvangen bedragen",
			want:        Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability},
		},
		{
			// The income tier runs before the liability tier, so a
			// contribution received in advance types as income.
			name:        "income keyword wins over vooruitontvangen",
			description: "Vooruitontvangen contributies",
			want:        Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome},
		},
		{
			name:        "te ontvangen is a receivable",
			description: "Nog te ontvangen rente",
			want:        Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset},
		},
		{
			name:        "omzet is income",
			description: "Omzet workshops",
			want:        Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome},
		},
		{
			name:        "afschrijving is expense",
			description: "Afschrijving inventaris",
			want:        Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Use a code outside the digit heuristics so only the
			// description can decide.
			got := ClassifyLedgerAccount(eboekhouden.LedgerAccount{Code: "", Description: tc.description})
			if got != tc.want {
				t.Fatalf("%q: got %+v, want %+v", tc.description, got, tc.want)
			}
		})
	}
}

func TestClassifyLedgerAccount_LeadingDigitFallback(t *testing.T) {
	cases := []struct {
		code string
		want Classification
	}{
		{"0400", Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset}},
		{"1350", Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset}},
		{"2100", Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability}},
		{"4000", Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense}},
		{"7200", Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense}},
		{"8100", Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome}},
		{"9999", Classification{"", models.RootTypeAsset}},
		{"", Classification{"", models.RootTypeAsset}},
	}
	for _, tc := range cases {
		got := ClassifyLedgerAccount(eboekhouden.LedgerAccount{Code: tc.code, Description: "zzz"})
		if got != tc.want {
			t.Fatalf("code %q: got %+v, want %+v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyLedgerAccount_TierOrder(t *testing.T) {
	// Category wins over group, group wins over description.
	got := ClassifyLedgerAccount(eboekhouden.LedgerAccount{
		Code: "8000", Description: "Omzet", Category: "DEB", Group: "055",
	})
	want := Classification{models.AccountTypeReceivable, models.RootTypeAsset}
	if got != want {
		t.Fatalf("category should win: got %+v, want %+v", got, want)
	}

	got = ClassifyLedgerAccount(eboekhouden.LedgerAccount{
		Code: "8000", Description: "Kosten", Group: "055",
	})
	want = Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome}
	if got != want {
		t.Fatalf("group should win over description: got %+v, want %+v", got, want)
	}
}
