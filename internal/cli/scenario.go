package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kirana/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Snapshot bool
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File     string            `json:"file"`
	Name     string            `json:"name"`
	Pass     bool              `json:"pass"`
	Errors   []string          `json:"errors,omitempty"`
	Snapshot *harness.Snapshot `json:"snapshot,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file>...",
		Short: "Run scenario files against a scratch ledger",
		Long: `Run each scenario file against its own fresh database with a fixed clock
and report whether every step and assertion held. The --db database is not
touched.

Example:
  kirana scenario testdata/scenarios/credit_checkout.yaml
  kirana scenario --snapshot --format json checkout.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, cmd, args)
		},
	}
	cmd.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "include the trace and final state")
	return cmd
}

func runScenario(opts *ScenarioOptions, cmd *cobra.Command, files []string) error {
	f := opts.formatter(cmd)

	scenarios := make([]*harness.Scenario, 0, len(files))
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", file), err)
		}
		scenarios = append(scenarios, s)
	}

	results := make([]ScenarioResult, 0, len(scenarios))
	failed := 0
	for i, s := range scenarios {
		f.VerboseLog("running scenario %s (%d steps)", s.Name, len(s.Steps))
		res, err := harness.Run(cmd.Context(), s)
		if err != nil {
			return f.Fail(fmt.Sprintf("scenario %s could not run", s.Name), err)
		}
		sr := ScenarioResult{File: files[i], Name: s.Name, Pass: res.Pass, Errors: res.Errors}
		if opts.Snapshot {
			sr.Snapshot = &harness.Snapshot{
				ScenarioName: s.Name,
				Pass:         res.Pass,
				Trace:        res.Trace,
				State:        res.State,
			}
		}
		if !res.Pass {
			failed++
		}
		results = append(results, sr)
	}

	err := f.Render(results, func(w io.Writer) error {
		for _, r := range results {
			if r.Pass {
				fmt.Fprintf(w, "✓ %s\n", r.Name)
			} else {
				fmt.Fprintf(w, "✗ %s\n", r.Name)
				for _, e := range r.Errors {
					fmt.Fprintf(w, "    %s\n", e)
				}
			}
			if r.Snapshot != nil {
				b, err := json.MarshalIndent(r.Snapshot, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\n", b)
			}
		}
		_, err := fmt.Fprintf(w, "\n%d passed, %d failed\n", len(results)-failed, failed)
		return err
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}
