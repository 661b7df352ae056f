package model

// Transaction is an immutable financial record. Date is epoch millis; Time is
// the display string captured when the record was written.
type Transaction struct {
	ID          int64   `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	Type        TxType  `db:"type" json:"type"`
	Amount      float64 `db:"amount" json:"amount"`
	Date        int64   `db:"date" json:"date"`
	Time        string  `db:"time" json:"time"`
	CustomerID  *int64  `db:"customerId" json:"customerId"`
	VendorID    *int64  `db:"vendorId" json:"vendorId"`
	PaymentMode string  `db:"paymentMode" json:"paymentMode"`
}

// TransactionItem is one line of a transaction. ItemID becomes nil when the
// item is hard-deleted; ItemNameSnapshot keeps the name as sold.
type TransactionItem struct {
	ID               int64   `db:"id" json:"id"`
	TransactionID    int64   `db:"transactionId" json:"transactionId"`
	ItemID           *int64  `db:"itemId" json:"itemId"`
	ItemNameSnapshot string  `db:"itemNameSnapshot" json:"itemNameSnapshot"`
	Qty              int64   `db:"qty" json:"qty"`
	Price            float64 `db:"price" json:"price"`
}

// TransactionWithItems is a transaction and its lines read from one snapshot.
type TransactionWithItems struct {
	Transaction
	Items []TransactionItem `json:"items"`
}
