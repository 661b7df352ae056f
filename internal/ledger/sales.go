package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// displayTimeLayout is the 12-hour clock format stored in Transaction.Time.
const displayTimeLayout = "03:04 PM"

type saleConfig struct {
	decrementStock bool
}

// SaleOption configures RecordSale.
type SaleOption func(*saleConfig)

// WithStockDecrement makes RecordSale lower each referenced item's stock by
// the line quantity, in the same unit as the sale.
func WithStockDecrement() SaleOption {
	return func(c *saleConfig) { c.decrementStock = true }
}

type linesPayload struct {
	TransactionID int64                   `json:"transactionId"`
	Items         []model.TransactionItem `json:"items"`
}

// RecordSale inserts a transaction and its lines as one unit and returns the
// transaction id. Once the unit commits, each line's ID and TransactionID are
// filled in; on error lines is left as passed. The amount
// is stored as given; it is not checked against the lines. Stock is only
// touched with WithStockDecrement.
//
// A line that cannot be written, for example because it references an item
// that does not exist, rolls back the whole sale.
func (l *Ledger) RecordSale(ctx context.Context, t model.Transaction, lines []model.TransactionItem, opts ...SaleOption) (int64, error) {
	var cfg saleConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		txID    int64
		written []model.TransactionItem
	)
	err := l.atomic(ctx, "record sale", func(w *Writer) error {
		var err error
		if txID, written, err = w.RecordSale(ctx, t, lines, cfg.decrementStock); err != nil {
			return err
		}
		t.ID = txID
		if err := w.Enqueue(ctx, model.EntityTransaction, &txID, model.OpUpsert, t); err != nil {
			return err
		}
		if len(written) == 0 {
			return nil
		}
		return w.Enqueue(ctx, model.EntityTransactionItem, &txID, model.OpUpsertMany, linesPayload{TransactionID: txID, Items: written})
	})
	if err != nil {
		return 0, err
	}
	copy(lines, written)
	return txID, nil
}

// CartLine is one item and quantity in a checkout.
type CartLine struct {
	ItemID int64 `json:"itemId" yaml:"item_id"`
	Qty    int64 `json:"qty" yaml:"qty"`
}

// CheckoutRequest describes a counter sale.
type CheckoutRequest struct {
	Lines       []CartLine `json:"lines" yaml:"lines"`
	PaymentMode string     `json:"paymentMode" yaml:"payment_mode"`
	CustomerID  *int64     `json:"customerId,omitempty" yaml:"customer_id"`
}

type saleLine struct {
	ItemID int64   `json:"itemId"`
	Name   string  `json:"name"`
	Qty    int64   `json:"qty"`
	Price  float64 `json:"price"`
}

type salePayload struct {
	Type        string     `json:"type"`
	PaymentMode string     `json:"paymentMode"`
	CustomerID  *int64     `json:"customerId"`
	Amount      float64    `json:"amount"`
	Items       []saleLine `json:"items"`
}

// Checkout records a counter sale: the transaction and its lines priced from
// the current item rows, a stock decrement per line, and for CREDIT sales to
// a customer, the sale total added to the customer's balance. The total is
// summed in decimal and rounded to paise.
func (l *Ledger) Checkout(ctx context.Context, req CheckoutRequest) (model.TransactionWithItems, error) {
	var out model.TransactionWithItems
	if len(req.Lines) == 0 {
		return out, store.NewConstraintError("checkout", schema.Transactions, "cart is empty")
	}
	if err := checkMode("checkout", req.PaymentMode); err != nil {
		return out, err
	}
	for _, cl := range req.Lines {
		if cl.Qty <= 0 {
			return out, store.NewConstraintError("checkout", schema.TransactionItems,
				fmt.Sprintf("quantity %d for item %d must be positive", cl.Qty, cl.ItemID))
		}
	}

	err := l.atomic(ctx, "checkout", func(w *Writer) error {
		lines := make([]model.TransactionItem, 0, len(req.Lines))
		payload := salePayload{Type: model.TxSale, PaymentMode: req.PaymentMode, CustomerID: req.CustomerID}
		total := decimal.Zero
		for _, cl := range req.Lines {
			item, err := store.Items.Get(ctx, w.Reader(), cl.ItemID)
			if err != nil {
				return err
			}
			if item.IsDeleted {
				return store.NewConstraintError("checkout", schema.Items, fmt.Sprintf("item %d is deleted", item.ID))
			}
			lines = append(lines, model.TransactionItem{
				ItemID:           ptr(item.ID),
				ItemNameSnapshot: item.Name,
				Qty:              cl.Qty,
				Price:            item.Price,
			})
			payload.Items = append(payload.Items, saleLine{ItemID: item.ID, Name: item.Name, Qty: cl.Qty, Price: item.Price})
			total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(cl.Qty)))
		}
		amount := total.Round(2).InexactFloat64()
		payload.Amount = amount

		t := model.Transaction{
			Title:       fmt.Sprintf("Sale - %d items (%s)", len(lines), req.PaymentMode),
			Type:        model.TxSale,
			Amount:      amount,
			Date:        w.Now().UnixMilli(),
			Time:        l.displayTime(w),
			CustomerID:  req.CustomerID,
			PaymentMode: req.PaymentMode,
		}
		txID, written, err := w.RecordSale(ctx, t, lines, true)
		if err != nil {
			return err
		}
		if req.CustomerID != nil && req.PaymentMode == model.Credit {
			if err := w.AdjustBalance(ctx, *req.CustomerID, amount); err != nil {
				return err
			}
		}
		t.ID = txID
		out = model.TransactionWithItems{Transaction: t, Items: written}
		return w.Enqueue(ctx, model.EntityTransaction, &txID, model.OpCreateSale, payload)
	})
	if err != nil {
		return model.TransactionWithItems{}, err
	}
	return out, nil
}

type paymentPayload struct {
	PartyID   int64   `json:"partyId"`
	PartyType string  `json:"partyType"`
	Amount    float64 `json:"amount"`
	Mode      string  `json:"mode"`
}

// RecordPayment records money settled with a party. A payment to a vendor
// is an EXPENSE and raises the vendor's balance; a payment from a customer
// is INCOME and lowers the customer's balance.
func (l *Ledger) RecordPayment(ctx context.Context, partyID int64, amount float64, mode string) (int64, error) {
	if err := checkAmount("record payment", amount); err != nil {
		return 0, err
	}
	if err := checkMode("record payment", mode); err != nil {
		return 0, err
	}

	var txID int64
	err := l.atomic(ctx, "record payment", func(w *Writer) error {
		party, err := store.Parties.Get(ctx, w.Reader(), partyID)
		if err != nil {
			return err
		}
		t := model.Transaction{
			Amount:      amount,
			Date:        w.Now().UnixMilli(),
			Time:        l.displayTime(w),
			PaymentMode: mode,
		}
		delta := -amount
		if party.IsVendor() {
			t.Title, t.Type, t.VendorID = "Payment to "+party.Name, model.TxExpense, &party.ID
			delta = amount
		} else {
			t.Title, t.Type, t.CustomerID = "Payment from "+party.Name, model.TxIncome, &party.ID
		}

		if txID, err = store.Transactions.Insert(ctx, w.Tx(), t); err != nil {
			return err
		}
		if err := w.AdjustBalance(ctx, party.ID, delta); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityTransaction, &txID, model.OpCreatePayment,
			paymentPayload{PartyID: party.ID, PartyType: party.Type, Amount: amount, Mode: mode})
	})
	return txID, err
}

type purchasePayload struct {
	VendorID int64   `json:"vendorId"`
	Amount   float64 `json:"amount"`
	Mode     string  `json:"mode"`
	Note     *string `json:"note"`
}

// RecordVendorPurchase records stock bought from a vendor. A CREDIT purchase
// lowers the vendor's balance, which is what the shop owes; paid purchases
// leave it alone. The party must be a vendor.
func (l *Ledger) RecordVendorPurchase(ctx context.Context, vendorID int64, amount float64, mode, note string) (int64, error) {
	if err := checkAmount("record vendor purchase", amount); err != nil {
		return 0, err
	}
	if err := checkMode("record vendor purchase", mode); err != nil {
		return 0, err
	}
	cleanNote := blankToNil(note)

	var txID int64
	err := l.atomic(ctx, "record vendor purchase", func(w *Writer) error {
		vendor, err := vendorByID(ctx, w, vendorID)
		if err != nil {
			return err
		}
		title := "Purchase from " + vendor.Name
		if cleanNote != nil {
			title += " • " + *cleanNote
		}
		t := model.Transaction{
			Title:       fmt.Sprintf("%s (%s)", title, mode),
			Type:        model.TxExpense,
			Amount:      amount,
			Date:        w.Now().UnixMilli(),
			Time:        l.displayTime(w),
			VendorID:    &vendor.ID,
			PaymentMode: mode,
		}
		if txID, err = store.Transactions.Insert(ctx, w.Tx(), t); err != nil {
			return err
		}
		if mode == model.Credit {
			if err := w.AdjustBalance(ctx, vendor.ID, -amount); err != nil {
				return err
			}
		}
		return w.Enqueue(ctx, model.EntityTransaction, &txID, model.OpCreateVendorPurchase,
			purchasePayload{VendorID: vendor.ID, Amount: amount, Mode: mode, Note: cleanNote})
	})
	return txID, err
}

// Expense describes a business expense for RecordExpense.
type Expense struct {
	Amount      float64 `json:"amount" yaml:"amount"`
	Mode        string  `json:"mode" yaml:"mode"`
	VendorID    *int64  `json:"vendorId,omitempty" yaml:"vendor_id"`
	Category    string  `json:"category,omitempty" yaml:"category"`
	Description string  `json:"description,omitempty" yaml:"description"`
}

type expensePayload struct {
	Amount      float64 `json:"amount"`
	Mode        string  `json:"mode"`
	VendorID    *int64  `json:"vendorId"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

// RecordExpense records a business expense, optionally against a vendor.
// A CREDIT expense with a vendor lowers the vendor's balance.
func (l *Ledger) RecordExpense(ctx context.Context, e Expense) (int64, error) {
	if err := checkAmount("record expense", e.Amount); err != nil {
		return 0, err
	}
	if err := checkMode("record expense", e.Mode); err != nil {
		return 0, err
	}
	cat, desc := blankToNil(e.Category), blankToNil(e.Description)

	var txID int64
	err := l.atomic(ctx, "record expense", func(w *Writer) error {
		var b strings.Builder
		b.WriteString("Expense")
		for _, part := range []*string{cat, desc} {
			if part != nil {
				b.WriteString(" • " + *part)
			}
		}
		var vendor *model.Party
		if e.VendorID != nil {
			v, err := vendorByID(ctx, w, *e.VendorID)
			if err != nil {
				return err
			}
			vendor = &v
			b.WriteString(" • " + v.Name)
		}
		fmt.Fprintf(&b, " (%s)", e.Mode)

		t := model.Transaction{
			Title:       b.String(),
			Type:        model.TxExpense,
			Amount:      e.Amount,
			Date:        w.Now().UnixMilli(),
			Time:        l.displayTime(w),
			VendorID:    e.VendorID,
			PaymentMode: e.Mode,
		}
		var err error
		if txID, err = store.Transactions.Insert(ctx, w.Tx(), t); err != nil {
			return err
		}
		if vendor != nil && e.Mode == model.Credit {
			if err := w.AdjustBalance(ctx, vendor.ID, -e.Amount); err != nil {
				return err
			}
		}
		return w.Enqueue(ctx, model.EntityTransaction, &txID, model.OpCreateExpense,
			expensePayload{Amount: e.Amount, Mode: e.Mode, VendorID: e.VendorID, Category: cat, Description: desc})
	})
	return txID, err
}

// DeleteTransactions hard-deletes the transactions in ids together with
// their lines. Unknown ids are ignored. Balances and stock changed by the
// original operation are not reverted.
func (l *Ledger) DeleteTransactions(ctx context.Context, ids []int64) error {
	return l.deleteAll(ctx, "delete transactions", store.Transactions, model.EntityTransaction, ids)
}

func (l *Ledger) displayTime(w *Writer) string {
	return w.Now().In(l.loc).Format(displayTimeLayout)
}

func vendorByID(ctx context.Context, w *Writer, id int64) (model.Party, error) {
	p, err := store.Parties.Get(ctx, w.Reader(), id)
	if err != nil {
		return p, err
	}
	if !p.IsVendor() {
		return p, store.NewConstraintError("vendor", schema.Parties, fmt.Sprintf("party %d is a %s, not a vendor", id, strings.ToLower(p.Type)))
	}
	return p, nil
}

func checkAmount(op string, amount float64) error {
	if amount <= 0 {
		return store.NewConstraintError(op, schema.Transactions, fmt.Sprintf("amount %v must be positive", amount))
	}
	return nil
}

func checkMode(op, mode string) error {
	switch mode {
	case model.Cash, model.UPI, model.Credit:
		return nil
	}
	return store.NewConstraintError(op, schema.Transactions, fmt.Sprintf("unknown payment mode %q", mode))
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
