package model

// Party is a customer or vendor. For customers a positive balance is money
// owed to the shop; for vendors a negative balance is money the shop owes.
type Party struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Type      PartyType `db:"type" json:"type"`
	GSTNumber *string   `db:"gstNumber" json:"gstNumber"`
	Balance   float64   `db:"balance" json:"balance"`
}

func (p Party) IsVendor() bool { return p.Type == Vendor }
