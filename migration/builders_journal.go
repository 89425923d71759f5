package migration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
)

var donationPattern = regexp.MustCompile(`(?i)donatie|gift|donation`)

var bankChargePattern = regexp.MustCompile(`(?i)bank|kosten|fee`)

// counterAccountForBankMutation picks the non-bank side of a money_received
// or money_spent journal from the description.
func (r *Resolver) counterAccountForBankMutation(ctx context.Context, kind string, description string) (*models.Account, error) {
	if kind == KindMoneyReceived {
		if donationPattern.MatchString(description) {
			if account, err := r.SystemAccount(ctx, models.AccountCodeDonationIncome); err == nil {
				return account, nil
			}
		}
		return r.DefaultAccount(ctx, RoleIncome)
	}
	if bankChargePattern.MatchString(description) {
		if account, err := r.SystemAccount(ctx, models.AccountCodeBankCharges); err == nil {
			return account, nil
		}
	}
	return r.DefaultAccount(ctx, RoleExpense)
}

// buildBankJournal handles money_received and money_spent: a two-line
// journal between the bank account and a counter account picked by keyword.
func (r *Resolver) buildBankJournal(ctx context.Context, kind string, m eboekhouden.Mutation) buildResult {
	exists, err := journalEntryExists(ctx, m.ExternalId)
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	amount := paymentAmount(m)
	if amount.IsZero() {
		return skipped("zero_amount")
	}

	bank, err := r.ResolveBank(ctx, m.AccountCode)
	if err != nil {
		return failed(err)
	}
	counter, err := r.counterAccountForBankMutation(ctx, kind, m.Description)
	if err != nil {
		return failed(err)
	}

	bankLine := models.NewJournalEntryLine{AccountId: bank.ID, Description: m.Description}
	counterLine := models.NewJournalEntryLine{AccountId: counter.ID, Description: m.Description}
	if kind == KindMoneyReceived {
		bankLine.Debit = amount
		counterLine.Credit = amount
	} else {
		bankLine.Credit = amount
		counterLine.Debit = amount
	}

	input := &models.NewJournalEntry{
		PostingDate:        postingDateOf(m),
		Remark:             m.Description,
		ExternalMutationId: m.ExternalId,
		Lines:              []models.NewJournalEntryLine{bankLine, counterLine},
	}

	journal, err := models.CreateJournalEntry(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitJournalEntry(ctx, journal.ID); err != nil {
		return failed(err)
	}
	return created()
}

// clearingPlug turns an out-of-tolerance difference into a balancing line on
// the clearing account. A company without a clearing account gets the journal
// skipped as unbalanced; a lookup failure is an infrastructure error, not an
// imbalance.
func clearingPlug(diff decimal.Decimal, clearing *models.Account, lookupErr error) (models.NewJournalEntryLine, *buildResult) {
	if errors.Is(lookupErr, utils.ErrorRecordNotFound) || (lookupErr == nil && clearing == nil) {
		res := skipped("unbalanced")
		return models.NewJournalEntryLine{}, &res
	}
	if lookupErr != nil {
		res := failed(lookupErr)
		return models.NewJournalEntryLine{}, &res
	}
	plug := models.NewJournalEntryLine{
		AccountId:   clearing.ID,
		Description: "balancing entry",
	}
	if diff.IsPositive() {
		plug.Credit = diff
	} else {
		plug.Debit = diff.Neg()
	}
	return plug, nil
}

// memorialLines converts a mutation's signed line amounts into debit and
// credit entries: positive means debit, negative means credit.
func (r *Resolver) memorialLines(ctx context.Context, m eboekhouden.Mutation) ([]models.NewJournalEntryLine, error) {
	lines := make([]models.NewJournalEntryLine, 0, len(m.Lines))
	for _, source := range m.Lines {
		amount := source.AmountInclTax
		if amount.IsZero() {
			amount = source.AmountInput
		}
		if amount.IsZero() {
			continue
		}
		account, err := r.ResolveAccount(ctx, source.CounterAccountCode, RoleExpense)
		if err != nil {
			return nil, err
		}
		line := models.NewJournalEntryLine{
			AccountId:   account.ID,
			Description: source.Description,
		}
		if amount.IsPositive() {
			line.Debit = amount
		} else {
			line.Credit = amount.Neg()
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// buildMemorialJournal handles memorial mutations: free-form multi-line
// journals. Out-of-tolerance imbalance is plugged into the clearing account
// when one exists, otherwise the mutation is skipped.
func (r *Resolver) buildMemorialJournal(ctx context.Context, m eboekhouden.Mutation) buildResult {
	exists, err := journalEntryExists(ctx, m.ExternalId)
	if err != nil {
		return failed(err)
	}
	if exists {
		return skipped("already_imported")
	}

	lines, err := r.memorialLines(ctx, m)
	if err != nil {
		return failed(err)
	}
	if len(lines) < 2 {
		return skipped("too_few_lines")
	}

	diff := decimal.Zero
	for _, line := range lines {
		diff = diff.Add(line.Debit).Sub(line.Credit)
	}
	if !utils.WithinBalanceTolerance(diff) {
		clearing, lookupErr := models.FindClearingAccount(ctx)
		plug, stop := clearingPlug(diff, clearing, lookupErr)
		if stop != nil {
			return *stop
		}
		lines = append(lines, plug)
	}

	input := &models.NewJournalEntry{
		PostingDate:        postingDateOf(m),
		Remark:             m.Description,
		ExternalMutationId: m.ExternalId,
		Lines:              lines,
	}

	journal, err := models.CreateJournalEntry(ctx, input)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitJournalEntry(ctx, journal.ID); err != nil {
		return failed(err)
	}
	return created()
}

// buildOpeningBalance collapses all opening-balance mutations of a run into
// one journal dated at the start of the earliest fiscal year. The journal is
// a singleton per company; an out-of-balance set is never plugged, only
// reported.
func (r *Resolver) buildOpeningBalance(ctx context.Context, mutations []eboekhouden.Mutation) buildResult {
	if len(mutations) == 0 {
		return skipped("no_mutations")
	}

	has, err := models.HasOpeningBalanceJournal(ctx)
	if err != nil {
		return failed(err)
	}
	if has {
		return skipped("already_imported")
	}

	earliest := postingDateOf(mutations[0])
	var lines []models.NewJournalEntryLine
	for _, m := range mutations {
		if d := postingDateOf(m); d.Before(earliest) {
			earliest = d
		}
		mutationLines, err := r.memorialLines(ctx, m)
		if err != nil {
			return failed(err)
		}
		lines = append(lines, mutationLines...)
	}
	if len(lines) == 0 {
		return skipped("no_lines")
	}

	diff := decimal.Zero
	for _, line := range lines {
		diff = diff.Add(line.Debit).Sub(line.Credit)
	}
	// An out-of-balance set is never plugged; the bookkeeper corrects the
	// source and re-runs.
	if !utils.WithinBalanceTolerance(diff) {
		config.GetLogger().Warnf("opening balance off by %s; skipping", diff.StringFixed(2))
		return skipped("unbalanced")
	}

	yearStart := time.Date(earliest.Year(), time.January, 1, 0, 0, 0, 0, earliest.Location())
	externalId := fmt.Sprintf("opening-balance-%d", earliest.Year())

	input := &models.NewJournalEntry{
		PostingDate:        yearStart,
		Remark:             "Opening balance imported from e-Boekhouden",
		ExternalMutationId: externalId,
		IsOpeningBalance:   utils.NewTrue(),
		Lines:              lines,
	}

	journal, err := models.CreateJournalEntry(ctx, input)
	if err != nil {
		if errors.Is(err, models.ErrOpeningBalanceExists) {
			return skipped("already_imported")
		}
		if isDuplicateKeyErr(err) {
			return skipped("duplicate_entry")
		}
		return failed(err)
	}
	if err := models.SubmitJournalEntry(ctx, journal.ID); err != nil {
		return failed(err)
	}
	return created()
}
