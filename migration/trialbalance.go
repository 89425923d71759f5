package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TrialBalanceRow is one account's derived position at the cutoff date.
type TrialBalanceRow struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// ComputeTrialBalance derives a trial balance from raw mutations up to and
// including the cutoff date. Mutations sharing an external id form one
// cross-entry; only entries whose signed line amounts sum to zero
// participate. Within a balanced entry positive amounts land on the debit
// side, negative on credit.
func ComputeTrialBalance(mutations []eboekhouden.Mutation, cutoff time.Time) []TrialBalanceRow {
	type entryLine struct {
		accountCode string
		amount      decimal.Decimal
	}

	entries := map[string][]entryLine{}
	var order []string
	for _, m := range mutations {
		if m.PostingDate.After(cutoff) {
			continue
		}
		if _, seen := entries[m.ExternalId]; !seen {
			order = append(order, m.ExternalId)
		}
		for _, line := range m.Lines {
			amount := line.AmountInclTax
			if amount.IsZero() {
				amount = line.AmountInput
			}
			entries[m.ExternalId] = append(entries[m.ExternalId], entryLine{
				accountCode: line.CounterAccountCode,
				amount:      amount,
			})
		}
	}

	debits := map[string]decimal.Decimal{}
	credits := map[string]decimal.Decimal{}
	for _, id := range order {
		lines := entries[id]
		sum := decimal.Zero
		for _, line := range lines {
			sum = sum.Add(line.amount)
		}
		if !utils.WithinBalanceTolerance(sum) {
			continue
		}
		for _, line := range lines {
			if line.amount.IsPositive() {
				debits[line.accountCode] = debits[line.accountCode].Add(line.amount)
			} else if line.amount.IsNegative() {
				credits[line.accountCode] = credits[line.accountCode].Add(line.amount.Neg())
			}
		}
	}

	codes := map[string]bool{}
	for code := range debits {
		codes[code] = true
	}
	for code := range credits {
		codes[code] = true
	}
	sortedCodes := make([]string, 0, len(codes))
	for code := range codes {
		sortedCodes = append(sortedCodes, code)
	}
	sort.Strings(sortedCodes)

	rows := make([]TrialBalanceRow, 0, len(sortedCodes))
	for _, code := range sortedCodes {
		debit := debits[code]
		credit := credits[code]
		// Net the two sides so each account appears on one side only.
		net := debit.Sub(credit)
		row := TrialBalanceRow{AccountCode: code}
		switch {
		case net.IsPositive():
			row.Debit = net
		case net.IsNegative():
			row.Credit = net.Neg()
		default:
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// BookDerivedOpeningBalance posts the derived rows as the company's opening
// balance journal dated at yearStart. Every account code must resolve
// exactly; a default would silently shift balances, so a miss aborts.
func (r *Resolver) BookDerivedOpeningBalance(ctx context.Context, rows []TrialBalanceRow, yearStart time.Time) (*models.JournalEntry, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("trial balance is empty")
	}
	has, err := models.HasOpeningBalanceJournal(ctx)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, fmt.Errorf("opening balance journal already exists")
	}

	lines := make([]models.NewJournalEntryLine, 0, len(rows))
	for _, row := range rows {
		account, err := models.GetAccountByExternalCode(ctx, row.AccountCode)
		if err != nil {
			return nil, fmt.Errorf("%w: ledger code %q", utils.ErrorUnresolvableReference, row.AccountCode)
		}
		lines = append(lines, models.NewJournalEntryLine{
			AccountId:   account.ID,
			Description: fmt.Sprintf("opening balance %s", row.AccountCode),
			Debit:       row.Debit,
			Credit:      row.Credit,
		})
	}

	diff := decimal.Zero
	for _, line := range lines {
		diff = diff.Add(line.Debit).Sub(line.Credit)
	}
	if !utils.WithinBalanceTolerance(diff) {
		// The source exhibits both behaviors; default is to refuse. Plugging
		// retained earnings is an explicit operator opt-in.
		if config.StrictOpeningBalance() {
			return nil, fmt.Errorf("trial balance is off by %s; refusing to post", diff.StringFixed(2))
		}
		retained, err := r.SystemAccount(ctx, models.AccountCodeRetainedEarnings)
		if err != nil {
			return nil, fmt.Errorf("trial balance is off by %s and no retained earnings account is configured", diff.StringFixed(2))
		}
		config.GetLogger().Warnf("trial balance off by %s; plugging retained earnings", diff.StringFixed(2))
		plug := models.NewJournalEntryLine{
			AccountId:   retained.ID,
			Description: "opening balance difference",
		}
		if diff.IsPositive() {
			plug.Credit = diff
		} else {
			plug.Debit = diff.Neg()
		}
		lines = append(lines, plug)
	}

	input := &models.NewJournalEntry{
		PostingDate:        yearStart,
		Remark:             "Opening balance derived from trial balance",
		ExternalMutationId: fmt.Sprintf("opening-balance-%d", yearStart.Year()),
		IsOpeningBalance:   utils.NewTrue(),
		Lines:              lines,
	}
	journal, err := models.CreateJournalEntry(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := models.SubmitJournalEntry(ctx, journal.ID); err != nil {
		return nil, err
	}
	return journal, nil
}

// WriteTrialBalanceWorkbook renders the derivation into a spreadsheet for
// review before the rows are booked.
func WriteTrialBalanceWorkbook(rows []TrialBalanceRow, cutoff time.Time, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Trial Balance"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Account Code", "Debit", "Credit"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	_ = f.SetCellValue(sheet, "E1", fmt.Sprintf("Cutoff %s", cutoff.Format("2006-01-02")))

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, row := range rows {
		rowNum := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", rowNum), row.AccountCode)
		debit, _ := row.Debit.Float64()
		credit, _ := row.Credit.Float64()
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", rowNum), debit)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", rowNum), credit)
		totalDebit = totalDebit.Add(row.Debit)
		totalCredit = totalCredit.Add(row.Credit)
	}

	footer := len(rows) + 2
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", footer), "Total")
	td, _ := totalDebit.Float64()
	tc, _ := totalCredit.Float64()
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", footer), td)
	_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", footer), tc)

	return f.SaveAs(path)
}
