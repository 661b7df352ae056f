package cli

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
)

// seedItems is the demo catalog written by seed.
var seedItems = []model.Item{
	{Name: "Aashirvaad Atta 5kg", Price: 245, CostPrice: 228, Stock: 12, Category: "Staples", ReorderPoint: 4},
	{Name: "Toor Dal 1kg", Price: 140, CostPrice: 126, Stock: 20, Category: "Pulses", ReorderPoint: 5},
	{Name: "Sugar 1kg", Price: 45, CostPrice: 41, Stock: 30, Category: "Staples", ReorderPoint: 10},
	{Name: "Basmati Rice 5kg", Price: 520, CostPrice: 480, Stock: 6, Category: "Staples", ReorderPoint: 2},
	{Name: "Sunflower Oil 1L", Price: 155, CostPrice: 142, Stock: 18, Category: "Oils", ReorderPoint: 6},
	{Name: "Tea 250g", Price: 120, CostPrice: 104, Stock: 15, Category: "Beverages", ReorderPoint: 5},
	{Name: "Salt 1kg", Price: 25, CostPrice: 20, Stock: 40, Category: "Staples", ReorderPoint: 10},
	{Name: "Bath Soap", Price: 38, CostPrice: 31, Stock: 3, Category: "Household", ReorderPoint: 6},
}

// seedParties are the demo customers and vendors written by seed.
var seedParties = []model.Party{
	{Name: "Ravi Kumar", Phone: "9845012345", Type: model.Customer},
	{Name: "Lakshmi Stores", Phone: "9845023456", Type: model.Customer},
	{Name: "Sri Balaji Traders", Phone: "9845034567", Type: model.Vendor},
}

// SeedResult reports how many rows seed wrote.
type SeedResult struct {
	Items   int64 `json:"items"`
	Parties int64 `json:"parties"`
}

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Workers int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo catalog, customers and vendors",
		Long: `Write a small demo catalog, two customers and a vendor. Rows are written
by concurrent workers, each row in its own atomic unit.

Example:
  kirana seed --db ./shop.db --workers 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent writers")
	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, "--workers must be at least 1")
	}
	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer closeLedger(cmd, l)

	f := opts.formatter(cmd)
	result, err := seed(cmd.Context(), l, opts.Workers)
	if err != nil {
		return f.Fail("seed failed", err)
	}

	return f.Render(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Seeded %d item(s) and %d part(ies)\n", result.Items, result.Parties)
		return err
	})
}

func seed(ctx context.Context, l *ledger.Ledger, workers int) (SeedResult, error) {
	var items, parties atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, it := range seedItems {
		g.Go(func() error {
			if _, err := l.AddItem(ctx, it); err != nil {
				return fmt.Errorf("item %q: %w", it.Name, err)
			}
			items.Add(1)
			return nil
		})
	}
	for _, p := range seedParties {
		g.Go(func() error {
			if _, err := l.AddParty(ctx, p); err != nil {
				return fmt.Errorf("party %q: %w", p.Name, err)
			}
			parties.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return SeedResult{Items: items.Load(), Parties: parties.Load()}, err
}
