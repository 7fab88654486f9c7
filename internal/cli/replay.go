package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/controller"
	"github.com/roach88/leakguard/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - specific run only
}

// RunReplay holds the replay result for a single run.
type RunReplay struct {
	RunToken     string   `json:"run_token"`
	Ticks        int      `json:"ticks"`
	Changes      int      `json:"changes"`
	Trips        int      `json:"trips"`
	Gaps         []int64  `json:"gaps,omitempty"`
	Mismatches   []string `json:"mismatches,omitempty"`
	Reproducible bool     `json:"reproducible"`
}

// ReplayReport holds the overall replay result.
type ReplayReport struct {
	Runs            []RunReplay `json:"runs"`
	TotalRuns       int         `json:"total_runs"`
	AllReproducible bool        `json:"all_reproducible"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay logged runs and verify every decision",
		Long: `Replay logged runs on a fresh engine and verify every decision.

Each run starts from the document it was logged with; criteria changes
are re-applied at their logged position and every tick is decided again.
The replayed action, winning criterion, tick ID and config hash must
match the log exactly, and the log must have no missing seq values.

Exit codes:
  0 - All runs are reproducible
  1 - A run replayed differently, has gaps, or has a corrupt change
  2 - Command error (database not found, unknown run, etc.)

Examples:
  leakguard replay --db ./leakguard.db
  leakguard replay --db ./leakguard.db --run 0190f3a1-...
  leakguard replay --db ./leakguard.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var results []controller.ReplayResult
	if opts.RunToken != "" {
		r, err := controller.Replay(ctx, st, opts.RunToken)
		if errors.Is(err, sql.ErrNoRows) {
			msg := fmt.Sprintf("run not found: %s", opts.RunToken)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "replay failed", err)
		}
		results = append(results, r)
	} else {
		results, err = controller.ReplayAll(ctx, st)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "replay failed", err)
		}
	}

	report := ReplayReport{
		Runs:            make([]RunReplay, 0, len(results)),
		TotalRuns:       len(results),
		AllReproducible: true,
	}
	for _, r := range results {
		run := RunReplay{
			RunToken:     r.RunToken,
			Ticks:        r.Ticks,
			Changes:      r.Changes,
			Trips:        r.Trips,
			Gaps:         r.Gaps,
			Reproducible: r.OK(),
		}
		for _, m := range r.Mismatches {
			run.Mismatches = append(run.Mismatches, m.String())
		}
		if !run.Reproducible {
			report.AllReproducible = false
		}
		report.Runs = append(report.Runs, run)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: status(report.AllReproducible), Data: report}
		if !report.AllReproducible {
			resp.Error = &CLIError{Code: "E_NOT_REPRODUCIBLE", Message: "replay differs from the log"}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, report)
	}

	if !report.AllReproducible {
		return NewExitError(ExitFailure, "replay differs from the log")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, report ReplayReport) {
	w := formatter.Writer

	if report.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	for _, run := range report.Runs {
		mark := "✓"
		if !run.Reproducible {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d tick(s), %d change(s), %d trip(s)\n",
			mark, run.RunToken, run.Ticks, run.Changes, run.Trips)
		if len(run.Gaps) > 0 {
			fmt.Fprintf(w, "  missing seq: %v\n", run.Gaps)
		}
		for _, m := range run.Mismatches {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}

	fmt.Fprintln(w)
	if report.AllReproducible {
		fmt.Fprintf(w, "✓ All %d run(s) reproducible\n", report.TotalRuns)
	} else {
		fmt.Fprintln(w, "✗ Replay differs from the log")
	}
}

// openExistingStore opens a database that must already exist. store.Open
// would silently create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database not found: %s", path)
		}
	}
	return store.Open(path)
}
