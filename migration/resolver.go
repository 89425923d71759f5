package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/eboekhouden"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/models"
	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// Resolver turns upstream references (relation codes, ledger codes, counter
// accounts) into target records, creating them when missing. Caches live for
// one run and must not outlive it.
type Resolver struct {
	company     *models.Company
	relations   map[string]eboekhouden.Relation
	territories []*models.Territory
	sysAccounts map[string]int

	customersByCode map[string]*models.Customer
	suppliersByCode map[string]*models.Supplier
	accountsByCode  map[string]*models.Account
	itemsByCode     map[string]*models.Item
}

func NewResolver(ctx context.Context, relations []eboekhouden.Relation) (*Resolver, error) {
	company, err := models.GetCompany(ctx)
	if err != nil {
		return nil, err
	}
	territories, err := models.GetTerritories(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	sysAccounts, err := models.GetSystemAccounts(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	relationMap := make(map[string]eboekhouden.Relation, len(relations))
	for _, r := range relations {
		if r.Code != "" {
			relationMap[r.Code] = r
		}
	}

	return &Resolver{
		company:         company,
		relations:       relationMap,
		territories:     territories,
		sysAccounts:     sysAccounts,
		customersByCode: map[string]*models.Customer{},
		suppliersByCode: map[string]*models.Supplier{},
		accountsByCode:  map[string]*models.Account{},
		itemsByCode:     map[string]*models.Item{},
	}, nil
}

// composePartyName builds a display name for a new party. Relation fields
// win over the mutation description; the final fallbacks are stable so a
// rerun lands on the same record.
func composePartyName(partyType models.PartyType, relationCode string, description string, relation *eboekhouden.Relation) string {
	if relation != nil {
		if relation.CompanyName != "" {
			return relation.CompanyName
		}
		if relation.ContactPerson != "" {
			return relation.ContactPerson
		}
		if relation.Name != "" {
			return relation.Name
		}
	}
	if cleaned := utils.CleanDescription(description); cleaned != "" {
		return cleaned
	}
	if relationCode != "" {
		return fmt.Sprintf("%s %s", partyType, relationCode)
	}
	return fmt.Sprintf("E-Boekhouden Import %s", partyType)
}

func dedupePartyName(name, relationCode string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	if relationCode != "" {
		withCode := fmt.Sprintf("%s (%s)", name, relationCode)
		if !taken(withCode) {
			return withCode
		}
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (r *Resolver) pickTerritory(relation *eboekhouden.Relation) string {
	country := ""
	if relation != nil {
		country = relation.Country
	}
	return models.PickTerritory(r.territories, country, r.company.Country)
}

// ResolveCustomer finds or creates the customer behind a relation code.
func (r *Resolver) ResolveCustomer(ctx context.Context, relationCode string, description string) (*models.Customer, error) {
	if relationCode != "" {
		if cached, ok := r.customersByCode[relationCode]; ok {
			return cached, nil
		}
		existing, err := models.GetCustomerByExternalCode(ctx, relationCode)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if existing != nil {
			r.customersByCode[relationCode] = existing
			return existing, nil
		}
	}

	if !config.AutoCreateParties() {
		return nil, fmt.Errorf("%w: customer %q", utils.ErrorUnresolvableReference, relationCode)
	}

	var relation *eboekhouden.Relation
	if rel, ok := r.relations[relationCode]; ok {
		relation = &rel
	}

	name := composePartyName(models.PartyTypeCustomer, relationCode, description, relation)
	name = dedupePartyName(name, relationCode, func(candidate string) bool {
		existing, err := models.GetCustomerByName(ctx, candidate)
		return err == nil && existing != nil
	})

	input := &models.NewCustomer{
		Name:         name,
		ExternalCode: relationCode,
		Territory:    r.pickTerritory(relation),
	}
	if relation != nil {
		input.Email = relation.Email
		input.VatId = relation.VatId
	}

	customer, err := models.CreateCustomer(ctx, input)
	if err != nil {
		return nil, err
	}
	if relationCode != "" {
		r.customersByCode[relationCode] = customer
	}
	return customer, nil
}

// ResolveSupplier mirrors ResolveCustomer on the creditor side.
func (r *Resolver) ResolveSupplier(ctx context.Context, relationCode string, description string) (*models.Supplier, error) {
	if relationCode != "" {
		if cached, ok := r.suppliersByCode[relationCode]; ok {
			return cached, nil
		}
		existing, err := models.GetSupplierByExternalCode(ctx, relationCode)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if existing != nil {
			r.suppliersByCode[relationCode] = existing
			return existing, nil
		}
	}

	if !config.AutoCreateParties() {
		return nil, fmt.Errorf("%w: supplier %q", utils.ErrorUnresolvableReference, relationCode)
	}

	var relation *eboekhouden.Relation
	if rel, ok := r.relations[relationCode]; ok {
		relation = &rel
	}

	name := composePartyName(models.PartyTypeSupplier, relationCode, description, relation)
	name = dedupePartyName(name, relationCode, func(candidate string) bool {
		existing, err := models.GetSupplierByName(ctx, candidate)
		return err == nil && existing != nil
	})

	input := &models.NewSupplier{
		Name:         name,
		ExternalCode: relationCode,
		Territory:    r.pickTerritory(relation),
	}
	if relation != nil {
		input.Email = relation.Email
		input.VatId = relation.VatId
	}

	supplier, err := models.CreateSupplier(ctx, input)
	if err != nil {
		return nil, err
	}
	if relationCode != "" {
		r.suppliersByCode[relationCode] = supplier
	}
	return supplier, nil
}

// Account roles used by callers when a ledger code cannot be found and a
// company default must stand in.
const (
	RoleReceivable = "receivable"
	RolePayable    = "payable"
	RoleBank       = "bank"
	RoleIncome     = "income"
	RoleExpense    = "expense"
)

var roleDefaults = map[string]string{
	RoleReceivable: models.AccountCodeDefaultReceivable,
	RolePayable:    models.AccountCodeDefaultPayable,
	RoleBank:       models.AccountCodeDefaultBank,
	RoleIncome:     models.AccountCodeDefaultIncome,
	RoleExpense:    models.AccountCodeDefaultExpense,
}

// ResolveAccount looks up a target account by upstream ledger code, falling
// back to the company default for the caller's role.
func (r *Resolver) ResolveAccount(ctx context.Context, code string, role string) (*models.Account, error) {
	if code != "" {
		if cached, ok := r.accountsByCode[code]; ok {
			return cached, nil
		}
		account, err := models.GetAccountByExternalCode(ctx, code)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if account != nil {
			r.accountsByCode[code] = account
			return account, nil
		}
	}
	return r.DefaultAccount(ctx, role)
}

// DefaultAccount returns the company default for a role via the system
// account codes.
func (r *Resolver) DefaultAccount(ctx context.Context, role string) (*models.Account, error) {
	sysCode, ok := roleDefaults[role]
	if !ok {
		return nil, fmt.Errorf("%w: unknown account role %q", utils.ErrorUnresolvableReference, role)
	}
	return r.SystemAccount(ctx, sysCode)
}

// SystemAccount fetches the account bound to a system default code (REC,
// PAY, BNK, DON, ...).
func (r *Resolver) SystemAccount(ctx context.Context, sysCode string) (*models.Account, error) {
	id, ok := r.sysAccounts[sysCode]
	if !ok {
		return nil, fmt.Errorf("%w: company has no default account %q", utils.ErrorUnresolvableReference, sysCode)
	}
	return models.GetAccount(ctx, id)
}

// ResolveBank returns the Bank or Cash account behind a ledger code, else
// the company default bank.
func (r *Resolver) ResolveBank(ctx context.Context, code string) (*models.Account, error) {
	if code != "" {
		account, err := models.GetAccountByExternalCode(ctx, code)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if account != nil &&
			(account.AccountType == models.AccountTypeBank || account.AccountType == models.AccountTypeCash) {
			return account, nil
		}
	}
	return r.DefaultAccount(ctx, RoleBank)
}

// ResolveItem finds or creates the item derived from a counter account. The
// key is stable across runs so every run maps a counter account to the same
// item.
func (r *Resolver) ResolveItem(ctx context.Context, counterAccountCode string, transactionType string, description string) (*models.Item, error) {
	code := fmt.Sprintf("EB-%s-%s", strings.ToUpper(transactionType), counterAccountCode)
	if cached, ok := r.itemsByCode[code]; ok {
		return cached, nil
	}

	existing, err := models.GetItemByCode(ctx, code)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		r.itemsByCode[code] = existing
		return existing, nil
	}

	name := strings.TrimSpace(description)
	if name == "" {
		name = fmt.Sprintf("Ledger %s", counterAccountCode)
	}
	if len(name) > 140 {
		name = name[:140]
	}

	input := &models.NewItem{
		Code: code,
		Name: name,
	}
	switch transactionType {
	case "sales":
		account, err := r.ResolveAccount(ctx, counterAccountCode, RoleIncome)
		if err != nil {
			return nil, err
		}
		input.DefaultIncomeAccountId = account.ID
	default:
		account, err := r.ResolveAccount(ctx, counterAccountCode, RoleExpense)
		if err != nil {
			return nil, err
		}
		input.DefaultExpenseAccountId = account.ID
	}

	item, err := models.CreateItem(ctx, input)
	if err != nil {
		return nil, err
	}
	r.itemsByCode[code] = item
	return item, nil
}
