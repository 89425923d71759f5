package migration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
	"github.com/sirupsen/logrus"
)

// CoaImportResult summarizes one chart-of-accounts import.
type CoaImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Groups  int `json:"groups"`
}

// ImportChartOfAccounts fetches the upstream ledger, classifies each account
// and lands it under a per-group parent named by InferGroupName. Accounts
// already present by external code are left untouched.
func ImportChartOfAccounts(ctx context.Context, source eboekhouden.Source) (*CoaImportResult, error) {
	logger := config.GetLogger()

	accounts, err := source.FetchChartOfAccounts(ctx)
	if err != nil {
		return nil, err
	}

	grouped := map[string][]eboekhouden.LedgerAccount{}
	for _, account := range accounts {
		grouped[account.Group] = append(grouped[account.Group], account)
	}
	groupCodes := make([]string, 0, len(grouped))
	for code := range grouped {
		groupCodes = append(groupCodes, code)
	}
	sort.Strings(groupCodes)

	result := &CoaImportResult{}
	for _, groupCode := range groupCodes {
		members := grouped[groupCode]

		parentId := 0
		if groupCode != "" {
			parent, err := ensureGroupAccount(ctx, groupCode, members)
			if err != nil {
				return nil, err
			}
			parentId = parent.ID
			result.Groups++
		}

		for _, member := range members {
			existing, err := models.GetAccountByExternalCode(ctx, member.Code)
			if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, err
			}
			if existing != nil {
				result.Skipped++
				continue
			}

			classification := ClassifyLedgerAccount(member)
			name := member.Description
			if name == "" {
				name = fmt.Sprintf("Account %s", member.Code)
			}
			name = dedupeAccountName(ctx, name, member.Code)

			_, err = models.CreateAccount(ctx, &models.NewAccount{
				Name:             name,
				Code:             member.Code,
				AccountType:      classification.AccountType,
				RootType:         classification.RootType,
				ParentAccountId:  parentId,
				ExternalCode:     member.Code,
				ExternalCategory: member.Category,
				ExternalGroup:    member.Group,
			})
			if err != nil {
				if isDuplicateKeyErr(err) {
					result.Skipped++
					continue
				}
				return nil, err
			}
			result.Created++
		}
	}

	logger.WithFields(logrus.Fields{
		"field":   "coa_import",
		"created": result.Created,
		"skipped": result.Skipped,
		"groups":  result.Groups,
	}).Info("chart of accounts imported")
	return result, nil
}

// ensureGroupAccount finds or creates the group parent for an upstream
// group code. Its root type follows the majority classification of the
// member accounts.
func ensureGroupAccount(ctx context.Context, groupCode string, members []eboekhouden.LedgerAccount) (*models.Account, error) {
	externalCode := "GRP-" + groupCode
	existing, err := models.GetAccountByExternalCode(ctx, externalCode)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	descriptions := make([]string, 0, len(members))
	for _, m := range members {
		descriptions = append(descriptions, m.Description)
	}
	name := InferGroupName(descriptions)
	if name == "" {
		name = fmt.Sprintf("Group %s", groupCode)
	} else {
		name = titleWords(name)
	}
	name = dedupeAccountName(ctx, name, externalCode)

	rootCounts := map[models.RootType]int{}
	for _, m := range members {
		rootCounts[ClassifyLedgerAccount(m).RootType]++
	}
	rootType := models.RootTypeAsset
	best := 0
	for root, count := range rootCounts {
		if count > best {
			best = count
			rootType = root
		}
	}

	return models.CreateAccount(ctx, &models.NewAccount{
		Name:          name,
		RootType:      rootType,
		IsGroup:       utils.NewTrue(),
		ExternalCode:  externalCode,
		ExternalGroup: groupCode,
	})
}

func dedupeAccountName(ctx context.Context, name string, code string) string {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok {
		return name
	}
	count, err := utils.ResourceCountWhere[models.Account](ctx, companyId, "name = ?", name)
	if err != nil || count == 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, code)
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Pre-run account fixes. Earlier imports (and hand edits) leave some
// accounts mistyped in ways that break document validation; these keyword
// promotions run before every migration.

var preRunPromotions = []struct {
	pattern     *regexp.Regexp
	accountType models.AccountType
	rootType    models.RootType
}{
	{regexp.MustCompile(`(?i)debiteuren|accounts receivable`), models.AccountTypeReceivable, models.RootTypeAsset},
	{regexp.MustCompile(`(?i)crediteuren|accounts payable`), models.AccountTypePayable, models.RootTypeLiability},
	{regexp.MustCompile(`(?i)btw|omzetbelasting`), models.AccountTypeTax, models.RootTypeLiability},
}

// RunPreFixes applies the keyword promotions and marks cost centers with
// children as groups.
func RunPreFixes(ctx context.Context) error {
	logger := config.GetLogger()

	accounts, err := models.GetAccounts(ctx)
	if err != nil {
		return err
	}
	promoted := 0
	for _, account := range accounts {
		if account.ExternalCode == "" || *account.IsGroup {
			continue
		}
		for _, rule := range preRunPromotions {
			if !rule.pattern.MatchString(account.Name) {
				continue
			}
			if account.AccountType == rule.accountType {
				break
			}
			if _, err := models.PromoteAccountType(ctx, account.ID, rule.accountType, rule.rootType); err != nil {
				return err
			}
			promoted++
			queueReclassReview(ctx, account, rule.accountType)
			break
		}
	}

	costCenterGroups, err := models.PromoteCostCenterGroups(ctx)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"field":              "pre_run_fixes",
		"accounts_promoted":  promoted,
		"cost_center_groups": costCenterGroups,
	}).Info("pre-run fixes applied")
	return nil
}

// reclassReviewPayload is what the review queue shows for an automatic
// account promotion.
func reclassReviewPayload(account *models.Account, to models.AccountType) map[string]interface{} {
	return map[string]interface{}{
		"account_id":    account.ID,
		"external_code": account.ExternalCode,
		"name":          account.Name,
		"from":          string(account.AccountType),
		"to":            string(to),
	}
}

// queueReclassReview records a follow-up so a bookkeeper can confirm an
// automatic account promotion. Best effort; the promotion itself stands.
func queueReclassReview(ctx context.Context, account *models.Account, to models.AccountType) {
	note := fmt.Sprintf("account %q promoted to %s; review the classification", account.Name, to)
	payload := reclassReviewPayload(account, to)
	if _, err := models.CreatePendingRequest(ctx, models.PendingRequestKindAccountReclass, payload, note); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":      "queueReclassReview",
			"account_id": account.ID,
		}).Warn("failed to queue reclass review: " + err.Error())
	}
}
