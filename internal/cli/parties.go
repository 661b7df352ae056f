package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/model"
)

// NewPartiesCommand creates the parties command group.
func NewPartiesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parties",
		Short: "List and manage customers and vendors",
	}
	cmd.AddCommand(newPartiesListCommand(rootOpts))
	cmd.AddCommand(newPartiesAddCommand(rootOpts))
	cmd.AddCommand(newPartiesPayCommand(rootOpts))
	return cmd
}

type partiesListOptions struct {
	*RootOptions
	Type string
}

func newPartiesListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &partiesListOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parties by name with their balances",
		Example: `  kirana parties list
  kirana parties list --type vendor`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartiesList(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "only customer or vendor")
	return cmd
}

func runPartiesList(opts *partiesListOptions, cmd *cobra.Command) error {
	typ := strings.ToUpper(opts.Type)
	if typ != "" && typ != model.Customer && typ != model.Vendor {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid party type %q: must be customer or vendor", opts.Type))
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	var parties []model.Party
	if typ == "" {
		parties, err = l.Parties(cmd.Context())
	} else {
		parties, err = l.PartiesByType(cmd.Context(), typ)
	}
	f := opts.formatter(cmd)
	if err != nil {
		return f.Fail("list parties failed", err)
	}
	return f.Render(parties, func(io.Writer) error {
		rows := make([][]string, 0, len(parties))
		for _, p := range parties {
			rows = append(rows, []string{
				strconv.FormatInt(p.ID, 10),
				p.Name,
				p.Phone,
				p.Type,
				money(p.Balance),
			})
		}
		return f.Table([]string{"ID", "NAME", "PHONE", "TYPE", "BALANCE"}, rows)
	})
}

type partiesAddOptions struct {
	*RootOptions
	Party model.Party
	GST   string
}

func newPartiesAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &partiesAddOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a customer or vendor",
		Example:       `  kirana parties add --name "Ravi Kumar" --phone 9845012345 --type customer`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartiesAdd(opts, cmd)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&opts.Party.Name, "name", "", "name (required)")
	fl.StringVar(&opts.Party.Phone, "phone", "", "phone number (required)")
	fl.StringVar(&opts.Party.Type, "type", "customer", "customer or vendor")
	fl.StringVar(&opts.GST, "gst", "", "GST number")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func runPartiesAdd(opts *partiesAddOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	p := opts.Party
	p.Type = strings.ToUpper(p.Type)
	if opts.GST != "" {
		p.GSTNumber = &opts.GST
	}

	f := opts.formatter(cmd)
	id, err := l.AddParty(cmd.Context(), p)
	if err != nil {
		return f.Fail("add party failed", err)
	}
	return f.Render(AddResult{ID: id}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Added %s %d (%s)\n", strings.ToLower(p.Type), id, p.Name)
		return err
	})
}

type partiesPayOptions struct {
	*RootOptions
	Mode string
}

// PaymentResult reports a recorded payment and the party's new balance.
type PaymentResult struct {
	TransactionID int64   `json:"transaction_id"`
	PartyID       int64   `json:"party_id"`
	Balance       float64 `json:"balance"`
}

func newPartiesPayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &partiesPayOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "pay <party-id> <amount>",
		Short: "Record a payment from a customer or to a vendor",
		Long: `Record a payment. A customer payment is income and lowers what the
customer owes; a vendor payment is an expense and lowers what the shop owes.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartiesPay(opts, cmd, args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&opts.Mode, "mode", model.Cash, "payment mode (CASH|UPI|CREDIT)")
	return cmd
}

func runPartiesPay(opts *partiesPayOptions, cmd *cobra.Command, idArg, amountArg string) error {
	id, err := parseID(idArg)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(amountArg, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", amountArg), err)
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	ctx := cmd.Context()
	f := opts.formatter(cmd)
	txID, err := l.RecordPayment(ctx, id, amount, strings.ToUpper(opts.Mode))
	if err != nil {
		return f.Fail("record payment failed", err)
	}
	p, err := l.Party(ctx, id)
	if err != nil {
		return f.Fail("read party failed", err)
	}
	result := PaymentResult{TransactionID: txID, PartyID: id, Balance: p.Balance}
	return f.Render(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Recorded payment %d, %s balance is now %s\n", txID, p.Name, money(p.Balance))
		return err
	})
}
