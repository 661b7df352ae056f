package model

// Reminder types.
const (
	ReminderItem        = "ITEM"
	ReminderVendor      = "VENDOR"
	ReminderCustomer    = "CUSTOMER"
	ReminderTransaction = "TRANSACTION"
	ReminderGeneral     = "GENERAL"
)

// Reminder is a dated note. RefID is not a foreign key; what it points at is
// decided by Type, see [Reminder.Ref].
type Reminder struct {
	ID     int64   `db:"id" json:"id"`
	Title  string  `db:"title" json:"title"`
	Type   string  `db:"type" json:"type"`
	RefID  *int64  `db:"refId" json:"refId"`
	DueAt  int64   `db:"dueAt" json:"dueAt"`
	Note   *string `db:"note" json:"note"`
	IsDone bool    `db:"isDone" json:"isDone"`
}

// Ref resolves the loosely typed reference into a tagged value. Unknown
// types and missing ids resolve to a RefNone.
func (r Reminder) Ref() Ref {
	if r.RefID == nil {
		return Ref{}
	}
	switch r.Type {
	case ReminderItem:
		return Ref{Kind: RefItem, ID: *r.RefID}
	case ReminderTransaction:
		return Ref{Kind: RefTransaction, ID: *r.RefID}
	case ReminderVendor, ReminderCustomer:
		return Ref{Kind: RefParty, ID: *r.RefID}
	default:
		return Ref{}
	}
}
