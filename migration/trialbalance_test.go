package migration

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"github.com/shopspring/decimal"
)

func tbMutation(id string, date time.Time, lines ...eboekhouden.MutationLine) eboekhouden.Mutation {
	return eboekhouden.Mutation{ExternalId: id, PostingDate: date, Lines: lines}
}

func tbLine(account string, amount float64) eboekhouden.MutationLine {
	return eboekhouden.MutationLine{CounterAccountCode: account, AmountInclTax: decimal.NewFromFloat(amount)}
}

func TestComputeTrialBalance(t *testing.T) {
	cutoff := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	before := cutoff.AddDate(0, -1, 0)
	after := cutoff.AddDate(0, 1, 0)

	mutations := []eboekhouden.Mutation{
		// Balanced entry: bank up, income down.
		tbMutation("1", before, tbLine("1010", 100), tbLine("8000", -100)),
		// Second balanced entry touching the same bank account.
		tbMutation("2", before, tbLine("1010", 50), tbLine("8000", -50)),
		// Unbalanced entry: excluded entirely.
		tbMutation("3", before, tbLine("1010", 10), tbLine("8000", -7)),
		// After the cutoff: excluded.
		tbMutation("4", after, tbLine("1010", 999), tbLine("8000", -999)),
	}

	rows := ComputeTrialBalance(mutations, cutoff)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}

	// Rows come back sorted by account code.
	if rows[0].AccountCode != "1010" || rows[1].AccountCode != "8000" {
		t.Fatalf("unexpected row order: %+v", rows)
	}
	if !rows[0].Debit.Equal(decimal.NewFromInt(150)) || !rows[0].Credit.IsZero() {
		t.Fatalf("bank row wrong: %+v", rows[0])
	}
	if !rows[1].Credit.Equal(decimal.NewFromInt(150)) || !rows[1].Debit.IsZero() {
		t.Fatalf("income row wrong: %+v", rows[1])
	}
}

func TestComputeTrialBalance_NetsPerAccount(t *testing.T) {
	cutoff := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	date := cutoff.AddDate(0, -2, 0)

	mutations := []eboekhouden.Mutation{
		tbMutation("1", date, tbLine("1010", 100), tbLine("8000", -100)),
		// Money back out of the bank: partially offsets the first entry.
		tbMutation("2", date, tbLine("4000", 60), tbLine("1010", -60)),
	}

	rows := ComputeTrialBalance(mutations, cutoff)
	byCode := map[string]TrialBalanceRow{}
	for _, row := range rows {
		byCode[row.AccountCode] = row
	}

	bank := byCode["1010"]
	if !bank.Debit.Equal(decimal.NewFromInt(40)) || !bank.Credit.IsZero() {
		t.Fatalf("bank should net to 40 debit: %+v", bank)
	}
}

func TestComputeTrialBalance_DropsZeroNetAccounts(t *testing.T) {
	cutoff := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	date := cutoff.AddDate(0, -2, 0)

	mutations := []eboekhouden.Mutation{
		tbMutation("1", date, tbLine("1010", 100), tbLine("8000", -100)),
		tbMutation("2", date, tbLine("8000", 100), tbLine("1010", -100)),
	}

	rows := ComputeTrialBalance(mutations, cutoff)
	if len(rows) != 0 {
		t.Fatalf("fully offsetting entries should yield no rows, got %+v", rows)
	}
}

func TestComputeTrialBalance_FallsBackToInputAmount(t *testing.T) {
	cutoff := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	date := cutoff.AddDate(0, -2, 0)

	mutations := []eboekhouden.Mutation{
		tbMutation("1", date,
			eboekhouden.MutationLine{CounterAccountCode: "1010", AmountInput: decimal.NewFromInt(25)},
			eboekhouden.MutationLine{CounterAccountCode: "2000", AmountInput: decimal.NewFromInt(-25)},
		),
	}

	rows := ComputeTrialBalance(mutations, cutoff)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Debit.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("input amount fallback broken: %+v", rows[0])
	}
}
