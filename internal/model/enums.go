package model

// TxType is the kind of a transaction. The store accepts any string; these
// are the values the ledger writes.
type TxType = string

const (
	TxSale     TxType = "SALE"
	TxPurchase TxType = "PURCHASE"
	TxExpense  TxType = "EXPENSE"
	TxIncome   TxType = "INCOME"
)

// PartyType distinguishes customers from vendors.
type PartyType = string

const (
	Customer PartyType = "CUSTOMER"
	Vendor   PartyType = "VENDOR"
)

// Payment modes.
const (
	Cash   = "CASH"
	UPI    = "UPI"
	Credit = "CREDIT"
)

// Outbox status values.
const (
	OutboxPending = "PENDING"
	OutboxDone    = "DONE"
	OutboxFailed  = "FAILED"
)

// Outbox entity types.
const (
	EntityItem            = "ITEM"
	EntityParty           = "PARTY"
	EntityTransaction     = "TRANSACTION"
	EntityTransactionItem = "TRANSACTION_ITEM"
	EntityReminder        = "REMINDER"
)

// Outbox operations.
const (
	OpUpsert               = "UPSERT"
	OpUpsertMany           = "UPSERT_MANY"
	OpDelete               = "DELETE"
	OpMarkDone             = "MARK_DONE"
	OpCreateSale           = "CREATE_SALE"
	OpCreatePayment        = "CREATE_PAYMENT"
	OpCreateVendorPurchase = "CREATE_VENDOR_PURCHASE"
	OpCreateExpense        = "CREATE_EXPENSE"
)
