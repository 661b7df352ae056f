package harness

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
)

// opFunc runs one scenario step and returns the id it created, or 0.
type opFunc func(ctx context.Context, l *ledger.Ledger, args *yaml.Node) (int64, error)

// operations maps scenario op names onto ledger operations.
var operations = map[string]opFunc{
	"add_item":               addItem,
	"update_item":            updateItem,
	"adjust_stock":           adjustStock,
	"soft_delete":            withID(func(ctx context.Context, l *ledger.Ledger, id int64) error { return l.SoftDelete(ctx, id) }),
	"bulk_soft_delete":       withIDs(func(ctx context.Context, l *ledger.Ledger, ids []int64) error { return l.BulkSoftDelete(ctx, ids) }),
	"delete_items":           withIDs(func(ctx context.Context, l *ledger.Ledger, ids []int64) error { return l.DeleteItems(ctx, ids) }),
	"add_party":              addParty,
	"adjust_balance":         adjustBalance,
	"delete_parties":         withIDs(func(ctx context.Context, l *ledger.Ledger, ids []int64) error { return l.DeleteParties(ctx, ids) }),
	"record_sale":            recordSale,
	"checkout":               checkout,
	"record_payment":         recordPayment,
	"record_vendor_purchase": recordVendorPurchase,
	"record_expense":         recordExpense,
	"delete_transactions":    withIDs(func(ctx context.Context, l *ledger.Ledger, ids []int64) error { return l.DeleteTransactions(ctx, ids) }),
	"add_reminder":           addReminder,
	"mark_reminder_done":     withID(func(ctx context.Context, l *ledger.Ledger, id int64) error { return l.MarkReminderDone(ctx, id) }),
	"delete_reminder":        withID(func(ctx context.Context, l *ledger.Ledger, id int64) error { return l.DeleteReminder(ctx, id) }),
	"mark_outbox_done":       withID(func(ctx context.Context, l *ledger.Ledger, id int64) error { return l.MarkOutboxDone(ctx, id) }),
	"mark_outbox_failed":     markOutboxFailed,
	"retry_failed_outbox": func(ctx context.Context, l *ledger.Ledger, _ *yaml.Node) (int64, error) {
		_, err := l.RetryFailedOutbox(ctx)
		return 0, err
	},
	"clear_done_outbox": func(ctx context.Context, l *ledger.Ledger, _ *yaml.Node) (int64, error) {
		_, err := l.ClearDoneOutbox(ctx)
		return 0, err
	},
}

// decodeArgs decodes a step's args. Missing args decode to the zero value.
func decodeArgs[T any](n *yaml.Node) (T, error) {
	var v T
	if n == nil || n.Kind == 0 {
		return v, nil
	}
	if err := n.Decode(&v); err != nil {
		return v, fmt.Errorf("decode args: %w", err)
	}
	return v, nil
}

type idArgs struct {
	ID int64 `yaml:"id"`
}

type idsArgs struct {
	IDs []int64 `yaml:"ids"`
}

func withID(fn func(context.Context, *ledger.Ledger, int64) error) opFunc {
	return func(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
		a, err := decodeArgs[idArgs](n)
		if err != nil {
			return 0, err
		}
		return 0, fn(ctx, l, a.ID)
	}
}

func withIDs(fn func(context.Context, *ledger.Ledger, []int64) error) opFunc {
	return func(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
		a, err := decodeArgs[idsArgs](n)
		if err != nil {
			return 0, err
		}
		return 0, fn(ctx, l, a.IDs)
	}
}

type itemArgs struct {
	ID           int64   `yaml:"id"`
	Name         string  `yaml:"name"`
	Price        float64 `yaml:"price"`
	Stock        int64   `yaml:"stock"`
	Category     string  `yaml:"category"`
	Barcode      *string `yaml:"barcode"`
	CostPrice    float64 `yaml:"cost_price"`
	ReorderPoint int64   `yaml:"reorder_point"`
	Vendor       *int64  `yaml:"vendor"`
	Expiry       *int64  `yaml:"expiry"`
}

func (a itemArgs) item() model.Item {
	return model.Item{
		ID:               a.ID,
		Name:             a.Name,
		Price:            a.Price,
		Stock:            a.Stock,
		Category:         a.Category,
		Barcode:          a.Barcode,
		CostPrice:        a.CostPrice,
		ReorderPoint:     a.ReorderPoint,
		VendorID:         a.Vendor,
		ExpiryDateMillis: a.Expiry,
	}
}

func addItem(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[itemArgs](n)
	if err != nil {
		return 0, err
	}
	return l.AddItem(ctx, a.item())
}

func updateItem(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[itemArgs](n)
	if err != nil {
		return 0, err
	}
	return 0, l.UpdateItem(ctx, a.item())
}

type adjustStockArgs struct {
	Item  int64 `yaml:"item"`
	Delta int64 `yaml:"delta"`
}

func adjustStock(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[adjustStockArgs](n)
	if err != nil {
		return 0, err
	}
	return 0, l.AdjustStock(ctx, a.Item, a.Delta)
}

type partyArgs struct {
	Name  string  `yaml:"name"`
	Phone string  `yaml:"phone"`
	Type  string  `yaml:"type"`
	GST   *string `yaml:"gst"`
}

func addParty(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[partyArgs](n)
	if err != nil {
		return 0, err
	}
	return l.AddParty(ctx, model.Party{Name: a.Name, Phone: a.Phone, Type: a.Type, GSTNumber: a.GST})
}

type adjustBalanceArgs struct {
	Party int64   `yaml:"party"`
	Delta float64 `yaml:"delta"`
}

func adjustBalance(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[adjustBalanceArgs](n)
	if err != nil {
		return 0, err
	}
	return 0, l.AdjustBalance(ctx, a.Party, a.Delta)
}

type saleLineArgs struct {
	Item  *int64  `yaml:"item"`
	Name  string  `yaml:"name"`
	Qty   int64   `yaml:"qty"`
	Price float64 `yaml:"price"`
}

type recordSaleArgs struct {
	Title          string         `yaml:"title"`
	Type           string         `yaml:"type"`
	Amount         float64        `yaml:"amount"`
	Date           int64          `yaml:"date"`
	Time           string         `yaml:"time"`
	PaymentMode    string         `yaml:"payment_mode"`
	Customer       *int64         `yaml:"customer"`
	Vendor         *int64         `yaml:"vendor"`
	Lines          []saleLineArgs `yaml:"lines"`
	DecrementStock bool           `yaml:"decrement_stock"`
}

func recordSale(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[recordSaleArgs](n)
	if err != nil {
		return 0, err
	}
	if a.Type == "" {
		a.Type = model.TxSale
	}
	t := model.Transaction{
		Title:       a.Title,
		Type:        a.Type,
		Amount:      a.Amount,
		Date:        a.Date,
		Time:        a.Time,
		CustomerID:  a.Customer,
		VendorID:    a.Vendor,
		PaymentMode: a.PaymentMode,
	}
	lines := make([]model.TransactionItem, len(a.Lines))
	for i, ln := range a.Lines {
		lines[i] = model.TransactionItem{ItemID: ln.Item, ItemNameSnapshot: ln.Name, Qty: ln.Qty, Price: ln.Price}
	}
	var opts []ledger.SaleOption
	if a.DecrementStock {
		opts = append(opts, ledger.WithStockDecrement())
	}
	return l.RecordSale(ctx, t, lines, opts...)
}

func checkout(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	req, err := decodeArgs[ledger.CheckoutRequest](n)
	if err != nil {
		return 0, err
	}
	tx, err := l.Checkout(ctx, req)
	return tx.ID, err
}

type paymentArgs struct {
	Party  int64   `yaml:"party"`
	Amount float64 `yaml:"amount"`
	Mode   string  `yaml:"mode"`
	Note   string  `yaml:"note"`
}

func recordPayment(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[paymentArgs](n)
	if err != nil {
		return 0, err
	}
	return l.RecordPayment(ctx, a.Party, a.Amount, a.Mode)
}

func recordVendorPurchase(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[paymentArgs](n)
	if err != nil {
		return 0, err
	}
	return l.RecordVendorPurchase(ctx, a.Party, a.Amount, a.Mode, a.Note)
}

func recordExpense(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	e, err := decodeArgs[ledger.Expense](n)
	if err != nil {
		return 0, err
	}
	return l.RecordExpense(ctx, e)
}

type reminderArgs struct {
	Title string  `yaml:"title"`
	Type  string  `yaml:"type"`
	Ref   *int64  `yaml:"ref"`
	DueAt int64   `yaml:"due_at"`
	Note  *string `yaml:"note"`
}

func addReminder(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[reminderArgs](n)
	if err != nil {
		return 0, err
	}
	return l.AddReminder(ctx, model.Reminder{Title: a.Title, Type: a.Type, RefID: a.Ref, DueAt: a.DueAt, Note: a.Note})
}

type outboxFailedArgs struct {
	ID    int64  `yaml:"id"`
	Error string `yaml:"error"`
}

func markOutboxFailed(ctx context.Context, l *ledger.Ledger, n *yaml.Node) (int64, error) {
	a, err := decodeArgs[outboxFailedArgs](n)
	if err != nil {
		return 0, err
	}
	return 0, l.MarkOutboxFailed(ctx, a.ID, a.Error)
}
