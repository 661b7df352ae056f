package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/config"
	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string // YAML config file
	EnvFile   string // dotenv file; missing is fine
	Database  string // overrides database.path
	LogFormat string // overrides log.format

	// Clock, OpIDs and Location override the ledger defaults (for testing).
	Clock    func() time.Time
	OpIDs    ledger.OpIDGenerator
	Location *time.Location
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kirana CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kirana",
		Short: "Kirana - shop ledger",
		Long: `A transactional ledger for a neighbourhood shop: stock, customers and
vendors, sales and payments, with a sync outbox and live queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.LogFormat != "" && !isValidFormat(opts.LogFormat) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logs")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Config, "config", "", "config file (YAML)")
	pf.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with KIRANA_* variables")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	pf.StringVar(&opts.LogFormat, "log-format", "", "log format (json|text, overrides config)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts))
	cmd.AddCommand(NewPartiesCommand(opts))
	cmd.AddCommand(NewSaleCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the config file, env file and environment, then applies
// flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.Options{File: o.Config, EnvFile: o.EnvFile})
	if err != nil {
		return cfg, err
	}
	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openLedger loads the configuration and opens the ledger it names. Logs go
// to the command's stderr.
func (o *RootOptions) openLedger(cmd *cobra.Command) (*ledger.Ledger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)

	lopts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithCoalesceWindow(cfg.Engine.CoalesceWindow),
		ledger.WithStoreOptions(
			store.WithBusyTimeout(cfg.Database.BusyTimeout()),
			store.WithReadConns(cfg.Database.ReadConns),
			store.WithWriteRetries(cfg.Store.WriteRetries),
		),
	}
	if o.Clock != nil {
		lopts = append(lopts, ledger.WithClock(o.Clock))
	}
	if o.OpIDs != nil {
		lopts = append(lopts, ledger.WithOpIDGenerator(o.OpIDs))
	}
	if o.Location != nil {
		lopts = append(lopts, ledger.WithLocation(o.Location))
	}

	logger.Debug("opening ledger", "path", cfg.Database.Path)
	l, err := ledger.Open(cfg.Database.Path, lopts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return l, nil
}

// closeLedger closes l and logs a close failure instead of masking the
// command's result.
func closeLedger(cmd *cobra.Command, l *ledger.Ledger) {
	if err := l.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error closing database: %v\n", err)
	}
}
