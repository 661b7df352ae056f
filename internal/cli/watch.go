package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/engine"
	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Updates int
	Poll    time.Duration
}

// NewWatchCommand creates the watch command group.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a live query",
		Long: `Print a live query's result, then print it again whenever it changes.

Changes made by other kirana processes are picked up every --poll interval;
unchanged results are not printed. In JSON mode each result is one line.`,
	}
	cmd.PersistentFlags().IntVar(&opts.Updates, "updates", 0, "exit after this many changes (0 = until interrupted)")
	cmd.PersistentFlags().DurationVar(&opts.Poll, "poll", time.Second, "how often to check for changes from other processes")

	cmd.AddCommand(&cobra.Command{
		Use:           "items",
		Short:         "Follow the active item list",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd, schema.Items, (*ledger.Ledger).WatchActiveItems,
				func(f *OutputFormatter, items []model.Item) error {
					return printItems(f, items, false)
				})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "outbox",
		Short:         "Follow the number of unsynced outbox entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd, schema.Outbox, (*ledger.Ledger).WatchOutboxPending,
				func(f *OutputFormatter, n int64) error {
					_, err := fmt.Fprintf(f.Writer, "%d pending\n", n)
					return err
				})
		},
	})
	return cmd
}

func runWatch[T any](
	opts *WatchOptions,
	cmd *cobra.Command,
	table schema.TableID,
	subscribe func(*ledger.Ledger, context.Context) (*engine.Subscription[T], error),
	text func(*OutputFormatter, T) error,
) error {
	if opts.Poll <= 0 {
		return NewExitError(ExitCommandError, "--poll must be positive")
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	f := opts.formatter(cmd)
	sub, err := subscribe(l, ctx)
	if err != nil {
		return f.Fail("watch failed", err)
	}
	defer sub.Cancel()

	printed := 0
	emit := func(u engine.Update[T]) error {
		if u.Err != nil {
			f.VerboseLog("query %s failed at version %d: %v", sub.Name(), u.Version, u.Err)
			return nil
		}
		if f.JSON() {
			return json.NewEncoder(f.Writer).Encode(u.Value)
		}
		if printed > 0 {
			fmt.Fprintln(f.Writer)
		}
		printed++
		return text(f, u.Value)
	}

	if err := emit(sub.Initial()); err != nil {
		return err
	}

	// Commits from this process notify the tracker directly; the ticker
	// covers writers in other processes.
	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tracker().Notify(schema.NewTableSet(table))
		case u, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if err := emit(u); err != nil {
				return err
			}
			if u.Err != nil {
				continue
			}
			seen++
			if opts.Updates > 0 && seen >= opts.Updates {
				return nil
			}
		}
	}
}
