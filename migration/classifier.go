package migration

import (
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
)

// Classification is the target typing of one upstream ledger account. An
// empty AccountType means the root type alone decides placement, which is
// how equity accounts arrive.
type Classification struct {
	AccountType models.AccountType
	RootType    models.RootType
}

var pspPattern = regexp.MustCompile(`(?i)paypal|mollie|stripe|adyen|pay\.nl|tikkie|ideal|buckaroo|multisafepay|zettle|sumup|square`)

var cashPattern = regexp.MustCompile(`(?i)\bkas\b|kasgeld|contant|\bcash\b`)

var equityCategories = map[string]bool{"EIG": true}

var taxLiabilityCategories = map[string]bool{
	"BTW": true, "BTWRC": true, "AF": true, "AF6": true, "AF19": true, "AFOVERIG": true,
}

// ClassifyLedgerAccount types one upstream ledger account. The tiers run in
// order: category, group code, description keywords, leading digit of the
// account code. First match wins.
func ClassifyLedgerAccount(account eboekhouden.LedgerAccount) Classification {
	if c, ok := classifyByCategory(account); ok {
		return c
	}
	if c, ok := classifyByGroup(account); ok {
		return c
	}
	if c, ok := classifyByDescription(account.Description); ok {
		return c
	}
	return classifyByLeadingDigit(account.Code)
}

func classifyFinancial(description string) Classification {
	if cashPattern.MatchString(description) && !pspPattern.MatchString(description) {
		return Classification{models.AccountTypeCash, models.RootTypeAsset}
	}
	return Classification{models.AccountTypeBank, models.RootTypeAsset}
}

func classifyByCategory(account eboekhouden.LedgerAccount) (Classification, bool) {
	switch {
	case account.Category == "DEB":
		return Classification{models.AccountTypeReceivable, models.RootTypeAsset}, true
	case account.Category == "CRED":
		return Classification{models.AccountTypePayable, models.RootTypeLiability}, true
	case taxLiabilityCategories[account.Category]:
		return Classification{models.AccountTypeTax, models.RootTypeLiability}, true
	case account.Category == "VOOR":
		// Input VAT sits on the asset side.
		return Classification{models.AccountTypeTax, models.RootTypeAsset}, true
	case account.Category == "FIN":
		return classifyFinancial(account.Description), true
	case equityCategories[account.Category]:
		return Classification{"", models.RootTypeEquity}, true
	}
	return Classification{}, false
}

func classifyByGroup(account eboekhouden.LedgerAccount) (Classification, bool) {
	switch account.Group {
	case "001":
		return Classification{models.AccountTypeFixedAsset, models.RootTypeAsset}, true
	case "002":
		return classifyFinancial(account.Description), true
	case "003":
		return Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset}, true
	case "004":
		return Classification{models.AccountTypeReceivable, models.RootTypeAsset}, true
	case "005", "050", "051", "052", "053", "054":
		return Classification{"", models.RootTypeEquity}, true
	case "006":
		return Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability}, true
	case "055":
		return Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome}, true
	case "056", "057", "058", "059":
		return Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense}, true
	}
	return Classification{}, false
}

// Keyword tiers run in order; the employee-reserve rule must fire before the
// generic equity "reserve" rule, and "vooruitontvangen" must never match the
// receivable tier.
var descriptionRules = []struct {
	pattern        *regexp.Regexp
	exclude        *regexp.Regexp
	classification Classification
}{
	{
		pattern:        regexp.MustCompile(`reservering vakantiegeld|reservering sociale lasten`),
		classification: Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability},
	},
	{
		pattern:        regexp.MustCompile(`eigen vermogen|kapitaal|bestemmingsreserve|resultaat|\breserve\b`),
		classification: Classification{"", models.RootTypeEquity},
	},
	{
		pattern:        regexp.MustCompile(`omzet|opbrengst|inkomsten|contributie|donatie`),
		classification: Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome},
	},
	{
		pattern:        regexp.MustCompile(`kosten|uitgaven|inkoop|afschrijving`),
		classification: Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense},
	},
	{
		pattern:        regexp.MustCompile(`btw`),
		classification: Classification{models.AccountTypeTax, models.RootTypeLiability},
	},
	{
		pattern:        regexp.MustCompile(`vaste activa|inventaris|gebouw|machine`),
		classification: Classification{models.AccountTypeFixedAsset, models.RootTypeAsset},
	},
	{
		pattern:        regexp.MustCompile(`vorderingen|te ontvangen`),
		exclude:        regexp.MustCompile(`vooruitontvangen`),
		classification: Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset},
	},
	{
		pattern:        regexp.MustCompile(`schuld|te betalen|lening|vooruitontvangen|reservering`),
		classification: Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability},
	},
}

func classifyByDescription(description string) (Classification, bool) {
	lowered := strings.ToLower(description)
	for _, rule := range descriptionRules {
		if rule.exclude != nil && rule.exclude.MatchString(lowered) {
			continue
		}
		if rule.pattern.MatchString(lowered) {
			return rule.classification, true
		}
	}
	return Classification{}, false
}

func classifyByLeadingDigit(code string) Classification {
	if code == "" {
		return Classification{"", models.RootTypeAsset}
	}
	switch code[0] {
	case '0', '1':
		return Classification{models.AccountTypeCurrentAsset, models.RootTypeAsset}
	case '2':
		return Classification{models.AccountTypeCurrentLiability, models.RootTypeLiability}
	case '4', '5', '6', '7':
		return Classification{models.AccountTypeExpenseAccount, models.RootTypeExpense}
	case '8':
		return Classification{models.AccountTypeIncomeAccount, models.RootTypeIncome}
	default:
		return Classification{"", models.RootTypeAsset}
	}
}
