package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/controller"
)

// StepOptions holds flags for the step command.
type StepOptions struct {
	*RootOptions
	Database string
	RunToken string
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "step <reading>",
		Short: "Apply one reading to a logged run",
		Long: `Apply a single sensor reading to a run recorded in the database.

The run is resumed from its log (criteria, changes and accumulated flow
time), the reading is decided as the next tick, and the decision is
appended to the same log.

Example:
  leakguard step --db ./leakguard.db --run 0190f3a1-... '{"flow_rate": 3.0, "elapsed": 30}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to continue (required)")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runStep(opts *StepOptions, readingJSON string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reading, err := controller.ParseReading([]byte(readingJSON))
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid reading", err)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctrl, err := controller.Resume(ctx, st, opts.RunToken, controller.WithLogger(logger))
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("run not found: %s", opts.RunToken)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to resume run", err)
	}

	d, err := ctrl.Step(ctx, reading)
	if err != nil {
		// The decision was made and actuated; only logging failed.
		_ = writeDecision(formatter.Writer, opts.Format, d)
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "decision not logged", err)
	}

	if formatter.JSON() {
		return formatter.Success(newDecisionRecord(d))
	}
	return writeDecision(formatter.Writer, opts.Format, d)
}
