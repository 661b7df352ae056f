package model

// Item is a stock-keeping unit. Stock is a signed count; the ledger never
// clamps it at zero.
type Item struct {
	ID               int64    `db:"id" json:"id"`
	Name             string   `db:"name" json:"name"`
	Price            float64  `db:"price" json:"price"`
	Stock            int64    `db:"stock" json:"stock"`
	Category         string   `db:"category" json:"category"`
	RackLocation     *string  `db:"rackLocation" json:"rackLocation"`
	MarginPercentage float64  `db:"marginPercentage" json:"marginPercentage"`
	Barcode          *string  `db:"barcode" json:"barcode"`
	CostPrice        float64  `db:"costPrice" json:"costPrice"`
	GSTPercentage    *float64 `db:"gstPercentage" json:"gstPercentage"`
	ReorderPoint     int64    `db:"reorderPoint" json:"reorderPoint"`
	VendorID         *int64   `db:"vendorId" json:"vendorId"`
	ImageURI         *string  `db:"imageUri" json:"imageUri"`
	ExpiryDateMillis *int64   `db:"expiryDateMillis" json:"expiryDateMillis"`
	IsDeleted        bool     `db:"isDeleted" json:"isDeleted"`
}

// LowStock reports whether stock is at or below the reorder point.
func (i Item) LowStock() bool {
	return i.Stock <= i.ReorderPoint
}
