package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type JournalEntry struct {
	ID            int    `gorm:"primary_key" json:"id"`
	CompanyId     string `gorm:"index;uniqueIndex:idx_je_external,priority:1;not null" json:"company_id"`
	SequenceNo    int64  `gorm:"not null" json:"sequence_no"`
	JournalNumber string `gorm:"size:50;not null" json:"journal_number"`
	PostingDate   time.Time `gorm:"not null" json:"posting_date"`
	Remark        string    `gorm:"type:text" json:"remark"`
	// ExternalMutationId is the upstream mutation id; unique per company
	// among non-cancelled journals (cleared on cancel). The collapsed
	// opening-balance journal carries a synthetic id.
	ExternalMutationId *string            `gorm:"uniqueIndex:idx_je_external,priority:2;size:64" json:"external_mutation_id"`
	IsOpeningBalance   *bool              `gorm:"not null;default:false" json:"is_opening_balance"`
	Status             DocStatus          `gorm:"index;size:10;not null;default:'Draft'" json:"status"`
	TotalDebit         decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_debit"`
	Lines              []JournalEntryLine `gorm:"foreignKey:JournalEntryId" json:"lines"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type JournalEntryLine struct {
	ID             int             `gorm:"primary_key" json:"id"`
	JournalEntryId int             `gorm:"index;not null" json:"journal_entry_id"`
	AccountId      int             `gorm:"index;not null" json:"account_id"`
	Description    string          `gorm:"size:255" json:"description"`
	Debit          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	PartyType      *PartyType      `gorm:"size:10" json:"party_type"`
	PartyId        int             `json:"party_id"`
}

type NewJournalEntry struct {
	PostingDate        time.Time             `json:"posting_date" binding:"required"`
	Remark             string                `json:"remark"`
	ExternalMutationId string                `json:"external_mutation_id"`
	IsOpeningBalance   *bool                 `json:"is_opening_balance"`
	Lines              []NewJournalEntryLine `json:"lines"`
}

type NewJournalEntryLine struct {
	AccountId   int             `json:"account_id" binding:"required"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	PartyType   *PartyType      `json:"party_type"`
	PartyId     int             `json:"party_id"`
}

func (input *NewJournalEntry) validate(ctx context.Context, companyId string) error {
	if len(input.Lines) == 0 {
		return errors.New("journal requires at least one line")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range input.Lines {
		if l.Debit.IsZero() && l.Credit.IsZero() {
			return errors.New("either debit or credit must have value")
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return errors.New("debit and credit must be non-negative")
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
		if err := validateLineAccount(ctx, companyId, l.AccountId); err != nil {
			return err
		}
	}

	if !utils.WithinBalanceTolerance(totalDebit.Sub(totalCredit)) {
		return fmt.Errorf("journal does not balance: debit %s, credit %s",
			totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}
	return nil
}

func CreateJournalEntry(ctx context.Context, input *NewJournalEntry) (*JournalEntry, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}

	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	totalDebit := decimal.Zero
	lines := make([]JournalEntryLine, 0, len(input.Lines))
	for _, l := range input.Lines {
		totalDebit = totalDebit.Add(l.Debit)
		lines = append(lines, JournalEntryLine{
			AccountId:   l.AccountId,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
			PartyType:   l.PartyType,
			PartyId:     l.PartyId,
		})
	}

	isOpening := input.IsOpeningBalance
	if isOpening == nil {
		isOpening = utils.NewFalse()
	}

	journal := JournalEntry{
		CompanyId:        companyId,
		PostingDate:      input.PostingDate,
		Remark:           input.Remark,
		IsOpeningBalance: isOpening,
		Status:           DocStatusDraft,
		TotalDebit:       totalDebit,
		Lines:            lines,
	}
	if input.ExternalMutationId != "" {
		id := input.ExternalMutationId
		journal.ExternalMutationId = &id
	}

	seqNo, err := utils.GetSequence[JournalEntry](ctx, companyId)
	if err != nil {
		return nil, err
	}
	journal.SequenceNo = seqNo
	journal.JournalNumber = fmt.Sprintf("JV-%06d", seqNo)

	if utils.GetDryRunFromContext(ctx) {
		return &journal, nil
	}

	db := config.GetDB()

	// The opening balance is a singleton per company. The existence check and
	// the insert run on one connection under an advisory lock, so two bookers
	// cannot both pass the check.
	if *isOpening {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := acquirePostingLock(tx, companyId); err != nil {
				return err
			}
			defer releasePostingLock(tx, companyId)

			var count int64
			err := tx.Model(&JournalEntry{}).
				Where("company_id = ? AND is_opening_balance = ?", companyId, true).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrOpeningBalanceExists
			}
			return tx.Create(&journal).Error
		})
		if err != nil {
			return nil, err
		}
		return &journal, nil
	}

	if err := db.WithContext(ctx).Create(&journal).Error; err != nil {
		return nil, err
	}
	return &journal, nil
}

// acquirePostingLock serializes posting per company across instances using a
// MySQL advisory lock. GET_LOCK is connection-scoped, so both calls must run
// on the transaction that does the posting.
func acquirePostingLock(tx *gorm.DB, companyId string) error {
	lockName := fmt.Sprintf("posting:%s", companyId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for company_id=%s", companyId)
	}
	return nil
}

func releasePostingLock(tx *gorm.DB, companyId string) {
	lockName := fmt.Sprintf("posting:%s", companyId)
	var released int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
}

func SubmitJournalEntry(ctx context.Context, id int) error {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return errors.New("company id is required")
	}
	if utils.GetDryRunFromContext(ctx) {
		return nil
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND id = ? AND status = ?", companyId, id, DocStatusDraft).
		Update("status", DocStatusSubmitted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("journal is not in draft")
	}
	return nil
}

// CountJournalEntriesByMutationId probes the stable external key among
// non-cancelled journals.
func CountJournalEntriesByMutationId(ctx context.Context, mutationId string) (int64, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return 0, errors.New("company id is required")
	}
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND external_mutation_id = ?", companyId, mutationId).
		Where("status <> ?", DocStatusCancelled).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ErrOpeningBalanceExists is returned when a second opening-balance journal
// is booked for the same company.
var ErrOpeningBalanceExists = errors.New("opening balance journal already exists")

// HasOpeningBalanceJournal reports whether the company already carries a
// non-cancelled opening-balance journal; the opening balance is a singleton.
func HasOpeningBalanceJournal(ctx context.Context) (bool, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return false, errors.New("company id is required")
	}
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&JournalEntry{}).
		Where("company_id = ? AND is_opening_balance = ?", companyId, true).
		Where("status <> ?", DocStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func GetJournalEntry(ctx context.Context, id int) (*JournalEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	var journal JournalEntry
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Lines").
		Where("company_id = ?", companyId).
		First(&journal, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &journal, nil
}
