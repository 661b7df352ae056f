package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
)

type outboxOptions struct {
	*RootOptions
	Limit int
	All   bool
}

// NewOutboxCommand creates the outbox command. Without a subcommand it
// lists entries waiting to be synced.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &outboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and maintain the sync outbox",
		Long: `List outbox entries not yet synced, oldest first. With --all, list the
newest entries in any status.

Example:
  kirana outbox --limit 20
  kirana outbox retry
  kirana outbox clear`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxList(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", ledger.DefaultOutboxBatch, "maximum entries")
	cmd.Flags().BoolVar(&opts.All, "all", false, "newest entries in any status")

	cmd.AddCommand(newOutboxMaintenanceCommand(rootOpts, "retry", "Move failed entries back to pending",
		"Reset", (*ledger.Ledger).RetryFailedOutbox))
	cmd.AddCommand(newOutboxMaintenanceCommand(rootOpts, "clear", "Delete synced entries",
		"Cleared", (*ledger.Ledger).ClearDoneOutbox))
	return cmd
}

func runOutboxList(opts *outboxOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	var entries []model.OutboxEntry
	if opts.All {
		entries, err = l.RecentOutbox(cmd.Context(), opts.Limit)
	} else {
		entries, err = l.PendingOutbox(cmd.Context(), opts.Limit)
	}
	f := opts.formatter(cmd)
	if err != nil {
		return f.Fail("list outbox failed", err)
	}
	return f.Render(entries, func(io.Writer) error {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			entity := e.EntityType
			if e.EntityID != nil {
				entity += ":" + *e.EntityID
			}
			rows = append(rows, []string{
				strconv.FormatInt(e.ID, 10),
				e.OpID,
				entity,
				e.Op,
				e.Status,
			})
		}
		return f.Table([]string{"ID", "OP_ID", "ENTITY", "OP", "STATUS"}, rows)
	})
}

// CountResult reports how many rows a maintenance command changed.
type CountResult struct {
	Count int64 `json:"count"`
}

func newOutboxMaintenanceCommand(rootOpts *RootOptions, use, short, verb string,
	run func(*ledger.Ledger, context.Context) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := rootOpts.openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeLedger(cmd, l)

			f := rootOpts.formatter(cmd)
			n, err := run(l, cmd.Context())
			if err != nil {
				return f.Fail(use+" outbox failed", err)
			}
			return f.Render(CountResult{Count: n}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "✓ %s %d outbox entr(ies)\n", verb, n)
				return err
			})
		},
	}
}
