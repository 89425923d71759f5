package models

// RootType is the top-level balance classification of an account.
type RootType string

const (
	RootTypeAsset     RootType = "Asset"
	RootTypeLiability RootType = "Liability"
	RootTypeEquity    RootType = "Equity"
	RootTypeIncome    RootType = "Income"
	RootTypeExpense   RootType = "Expense"
)

// AccountType is the fine-grained account subtype. An empty value is valid
// (plain equity accounts carry no subtype).
type AccountType string

const (
	AccountTypeReceivable       AccountType = "Receivable"
	AccountTypePayable          AccountType = "Payable"
	AccountTypeBank             AccountType = "Bank"
	AccountTypeCash             AccountType = "Cash"
	AccountTypeTax              AccountType = "Tax"
	AccountTypeIncomeAccount    AccountType = "Income Account"
	AccountTypeExpenseAccount   AccountType = "Expense Account"
	AccountTypeFixedAsset       AccountType = "Fixed Asset"
	AccountTypeCurrentAsset     AccountType = "Current Asset"
	AccountTypeCurrentLiability AccountType = "Current Liability"
	AccountTypeEquity           AccountType = "Equity"
	AccountTypeStock            AccountType = "Stock"
	AccountTypeTemporary        AccountType = "Temporary"
)

// DocStatus is the lifecycle of a posted document. Submitted documents are
// immutable; cancellation is a soft delete for idempotency purposes.
type DocStatus string

const (
	DocStatusDraft     DocStatus = "Draft"
	DocStatusSubmitted DocStatus = "Submitted"
	DocStatusCancelled DocStatus = "Cancelled"
)

type PaymentType string

const (
	PaymentTypeReceive PaymentType = "Receive"
	PaymentTypePay     PaymentType = "Pay"
)

type PartyType string

const (
	PartyTypeCustomer PartyType = "Customer"
	PartyTypeSupplier PartyType = "Supplier"
)

const (
	MigrationRunStatusQueued  = "queued"
	MigrationRunStatusRunning = "running"
	MigrationRunStatusSuccess = "success"
	MigrationRunStatusFailed  = "failed"
	MigrationRunStatusPartial = "partial"
)

const (
	MigrationTriggeredManual = "manual"
	MigrationTriggeredRetry  = "retry"
	MigrationTriggeredSystem = "system"
)

const (
	SourceProviderEBoekhouden = "eboekhouden"
)

const (
	SourceStatusConnected    = "connected"
	SourceStatusDisconnected = "disconnected"
	SourceStatusError        = "error"
)

// System default account codes, cached per company in redis.
const (
	AccountCodeDefaultReceivable = "REC"
	AccountCodeDefaultPayable    = "PAY"
	AccountCodeDefaultBank       = "BNK"
	AccountCodeDefaultCash       = "CSH"
	AccountCodeDefaultIncome     = "INC"
	AccountCodeDefaultExpense    = "EXP"
	AccountCodeDonationIncome    = "DON"
	AccountCodeBankCharges       = "BCH"
	AccountCodeRetainedEarnings  = "RET"
	AccountCodeTemporaryClearing = "TMP"
)

const (
	PendingRequestStatusOpen      = "open"
	PendingRequestStatusDone      = "done"
	PendingRequestStatusFailed    = "failed"
	PendingRequestStatusAbandoned = "abandoned"
)

const (
	PendingRequestKindBankDetails    = "bank_details_confirmation"
	PendingRequestKindAccountReclass = "account_reclass_review"
)
