package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/store"
)

// NewItemsCommand creates the items command group.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and change stock items",
	}
	cmd.AddCommand(newItemsListCommand(rootOpts))
	cmd.AddCommand(newItemsAddCommand(rootOpts))
	cmd.AddCommand(newItemsAdjustCommand(rootOpts))
	cmd.AddCommand(newItemsDeleteCommand(rootOpts))
	return cmd
}

type itemsListOptions struct {
	*RootOptions
	All      bool
	LowStock bool
}

func newItemsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &itemsListOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items by name",
		Example: `  kirana items list
  kirana items list --low-stock
  kirana items list --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsList(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include soft-deleted items")
	cmd.Flags().BoolVar(&opts.LowStock, "low-stock", false, "only items at or below their reorder point")
	cmd.MarkFlagsMutuallyExclusive("all", "low-stock")
	return cmd
}

func runItemsList(opts *itemsListOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	ctx := cmd.Context()
	var items []model.Item
	switch {
	case opts.All:
		items, err = store.Items.Select(ctx, l.Store().Reader(), "ORDER BY name ASC, id ASC")
	case opts.LowStock:
		items, err = l.LowStockItems(ctx)
	default:
		items, err = l.ActiveItems(ctx)
	}
	f := opts.formatter(cmd)
	if err != nil {
		return f.Fail("list items failed", err)
	}
	return f.Render(items, func(io.Writer) error {
		return printItems(f, items, opts.All)
	})
}

func printItems(f *OutputFormatter, items []model.Item, withDeleted bool) error {
	header := []string{"ID", "NAME", "PRICE", "STOCK", "CATEGORY"}
	if withDeleted {
		header = append(header, "DELETED")
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		row := []string{
			strconv.FormatInt(it.ID, 10),
			it.Name,
			money(it.Price),
			strconv.FormatInt(it.Stock, 10),
			it.Category,
		}
		if withDeleted {
			row = append(row, strconv.FormatBool(it.IsDeleted))
		}
		rows = append(rows, row)
	}
	return f.Table(header, rows)
}

type itemsAddOptions struct {
	*RootOptions
	Item    model.Item
	Barcode string
	Vendor  int64
}

// AddResult reports the id of a created row.
type AddResult struct {
	ID int64 `json:"id"`
}

func newItemsAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &itemsAddOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add an item",
		Example:       `  kirana items add --name "Toor Dal 1kg" --price 140 --stock 20 --category Pulses`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsAdd(opts, cmd)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&opts.Item.Name, "name", "", "item name (required)")
	fl.Float64Var(&opts.Item.Price, "price", 0, "selling price")
	fl.Float64Var(&opts.Item.CostPrice, "cost-price", 0, "purchase price")
	fl.Int64Var(&opts.Item.Stock, "stock", 0, "opening stock")
	fl.StringVar(&opts.Item.Category, "category", "General", "category")
	fl.Int64Var(&opts.Item.ReorderPoint, "reorder-point", 0, "low-stock threshold")
	fl.StringVar(&opts.Barcode, "barcode", "", "barcode")
	fl.Int64Var(&opts.Vendor, "vendor", 0, "vendor party id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runItemsAdd(opts *itemsAddOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	item := opts.Item
	if opts.Barcode != "" {
		item.Barcode = &opts.Barcode
	}
	if opts.Vendor != 0 {
		item.VendorID = &opts.Vendor
	}

	f := opts.formatter(cmd)
	id, err := l.AddItem(cmd.Context(), item)
	if err != nil {
		return f.Fail("add item failed", err)
	}
	return f.Render(AddResult{ID: id}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Added item %d (%s)\n", id, item.Name)
		return err
	})
}

func newItemsAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <id> <delta>",
		Short: "Add delta, which may be negative, to an item's stock",
		Example: `  kirana items adjust 3 12
  kirana items adjust 3 -- -2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsAdjust(rootOpts, cmd, args[0], args[1])
		},
	}
}

func runItemsAdjust(opts *RootOptions, cmd *cobra.Command, idArg, deltaArg string) error {
	id, err := parseID(idArg)
	if err != nil {
		return err
	}
	delta, err := strconv.ParseInt(deltaArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid delta %q", deltaArg), err)
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	ctx := cmd.Context()
	f := opts.formatter(cmd)
	if err := l.AdjustStock(ctx, id, delta); err != nil {
		return f.Fail("adjust stock failed", err)
	}
	item, err := l.Item(ctx, id)
	if err != nil {
		return f.Fail("read item failed", err)
	}
	return f.Render(item, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ %s stock is now %d\n", item.Name, item.Stock)
		return err
	})
}

type itemsDeleteOptions struct {
	*RootOptions
	Hard bool
}

// DeleteResult reports a delete request.
type DeleteResult struct {
	IDs  []int64 `json:"ids"`
	Hard bool    `json:"hard"`
}

func newItemsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &itemsDeleteOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Soft-delete items, or remove them with --hard",
		Long: `Soft-delete hides items from listings and keeps their rows. --hard removes
the rows; sale lines keep their name snapshot and lose the item reference.
Unknown ids are ignored.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsDelete(opts, cmd, args)
		},
	}
	cmd.Flags().BoolVar(&opts.Hard, "hard", false, "delete rows instead of hiding them")
	return cmd
}

func runItemsDelete(opts *itemsDeleteOptions, cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	f := opts.formatter(cmd)
	if opts.Hard {
		err = l.DeleteItems(cmd.Context(), ids)
	} else {
		err = l.BulkSoftDelete(cmd.Context(), ids)
	}
	if err != nil {
		return f.Fail("delete items failed", err)
	}
	return f.Render(DeleteResult{IDs: ids, Hard: opts.Hard}, func(w io.Writer) error {
		verb := "Soft-deleted"
		if opts.Hard {
			verb = "Deleted"
		}
		_, err := fmt.Fprintf(w, "✓ %s %d item(s)\n", verb, len(ids))
		return err
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// money formats an amount with two decimals.
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
