package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
)

// SaleOptions holds flags for the sale command.
type SaleOptions struct {
	*RootOptions
	Lines    []string
	Mode     string
	Customer int64
}

// NewSaleCommand creates the sale command.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Ring up a counter sale",
		Long: `Record a sale of one or more items at their current prices. Stock is
decremented per line. A CREDIT sale to a customer adds the total to the
customer's balance.

Each --item is <item-id>[:<qty>]; qty defaults to 1.

Example:
  kirana sale --item 1:2 --item 4 --mode UPI
  kirana sale --item 2:1 --mode CREDIT --customer 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSale(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Lines, "item", nil, "cart line <item-id>[:<qty>] (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", model.Cash, "payment mode (CASH|UPI|CREDIT)")
	cmd.Flags().Int64Var(&opts.Customer, "customer", 0, "customer party id")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func runSale(opts *SaleOptions, cmd *cobra.Command) error {
	req := ledger.CheckoutRequest{PaymentMode: strings.ToUpper(opts.Mode)}
	for _, s := range opts.Lines {
		line, err := parseCartLine(s)
		if err != nil {
			return err
		}
		req.Lines = append(req.Lines, line)
	}
	if opts.Customer != 0 {
		req.CustomerID = &opts.Customer
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	f := opts.formatter(cmd)
	sale, err := l.Checkout(cmd.Context(), req)
	if err != nil {
		return f.Fail("sale failed", err)
	}
	return f.Render(sale, func(w io.Writer) error {
		return printSale(f, sale)
	})
}

func printSale(f *OutputFormatter, sale model.TransactionWithItems) error {
	fmt.Fprintf(f.Writer, "✓ Sale %d: %s at %s\n\n", sale.ID, sale.Title, sale.Time)
	rows := make([][]string, 0, len(sale.Items))
	for _, it := range sale.Items {
		rows = append(rows, []string{
			it.ItemNameSnapshot,
			strconv.FormatInt(it.Qty, 10),
			money(it.Price),
		})
	}
	if err := f.Table([]string{"ITEM", "QTY", "PRICE"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f.Writer, "\nTotal: %s\n", money(sale.Amount))
	return err
}

// parseCartLine parses "<item-id>[:<qty>]".
func parseCartLine(s string) (ledger.CartLine, error) {
	idPart, qtyPart, hasQty := strings.Cut(s, ":")
	id, err := parseID(idPart)
	if err != nil {
		return ledger.CartLine{}, err
	}
	line := ledger.CartLine{ItemID: id, Qty: 1}
	if hasQty {
		qty, err := strconv.ParseInt(qtyPart, 10, 64)
		if err != nil {
			return ledger.CartLine{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity in %q", s))
		}
		line.Qty = qty
	}
	return line, nil
}
