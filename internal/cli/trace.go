package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunToken  string
	TripsOnly bool
}

// TimelineEntry is one logged tick or criteria change.
type TimelineEntry struct {
	Seq        int64  `json:"seq"`
	Type       string `json:"type"` // "tick" or "change"
	ID         string `json:"id"`
	ConfigHash string `json:"config_hash"`

	// Tick fields.
	Reading        string `json:"reading,omitempty"`
	Action         string `json:"action,omitempty"`
	CriterionIndex *int   `json:"criterion_index,omitempty"`

	// Change fields.
	Kind    string `json:"kind,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Ticks    int   `json:"ticks"`
	Changes  int   `json:"changes"`
	Trips    int   `json:"trips"`
	LastSeq  int64 `json:"last_seq"`
	Complete bool  `json:"complete"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken   string          `json:"run_token"`
	Document   string          `json:"document"`
	ConfigHash string          `json:"config_hash"`
	StartSeq   int64           `json:"start_seq"`
	Timeline   []TimelineEntry `json:"timeline"`
	Gaps       []int64         `json:"gaps,omitempty"`
	Stats      TraceStats      `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the logged history of a run",
		Long: `Show the logged history of a run in seq order.

The timeline interleaves ticks (reading, action, winning criterion) with
the criteria changes applied between them, each with the hash of the
criteria document in effect afterwards.

Examples:
  leakguard trace --db ./leakguard.db --run 0190f3a1-...
  leakguard trace --db ./leakguard.db --run 0190f3a1-... --trips-only
  leakguard trace --db ./leakguard.db --run 0190f3a1-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().BoolVar(&opts.TripsOnly, "trips-only", false, "only show ticks that closed the valve, and changes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	h, err := st.GetRunHistory(ctx, opts.RunToken)
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("run not found: %s", opts.RunToken)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := buildTrace(h, opts.TripsOnly)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

// buildTrace converts a run history to CLI output.
func buildTrace(h store.RunHistory, tripsOnly bool) TraceResult {
	result := TraceResult{
		RunToken:   h.Run.Token,
		Document:   h.Run.Document,
		ConfigHash: h.Run.ConfigHash,
		StartSeq:   h.Run.StartSeq,
		Timeline:   make([]TimelineEntry, 0, len(h.Entries)),
		Gaps:       h.Gaps,
		Stats: TraceStats{
			Ticks:    h.Ticks,
			Changes:  h.Changes,
			Trips:    h.Trips,
			LastSeq:  h.LastSeq,
			Complete: h.Complete(),
		},
	}

	for _, entry := range h.Entries {
		if ch := entry.Change; ch != nil {
			result.Timeline = append(result.Timeline, TimelineEntry{
				Seq:        ch.Seq,
				Type:       "change",
				ID:         ch.ID,
				ConfigHash: ch.ConfigHash,
				Kind:       string(ch.Kind),
				Payload:    ch.Payload,
			})
			continue
		}

		t := entry.Tick
		if tripsOnly && t.Action == ir.DefaultAction() {
			continue
		}
		te := TimelineEntry{
			Seq:        t.Seq,
			Type:       "tick",
			ID:         t.ID,
			ConfigHash: t.ConfigHash,
			Reading:    fmt.Sprintf("flow=%g elapsed=%d probes=%v", t.FlowRate, t.Elapsed, t.Probes),
			Action:     t.Action.String(),
		}
		if t.CriterionIndex >= 0 {
			idx := t.CriterionIndex
			te.CriterionIndex = &idx
		}
		result.Timeline = append(result.Timeline, te)
	}

	return result
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Run %s\n", result.RunToken)
	fmt.Fprintf(w, "  started at seq %d with %q\n\n", result.StartSeq, result.Document)

	for _, e := range result.Timeline {
		switch e.Type {
		case "change":
			fmt.Fprintf(w, "%6d  change  %-11s %s\n", e.Seq, e.Kind, e.Payload)
		default:
			winner := "-"
			if e.CriterionIndex != nil {
				winner = fmt.Sprintf("#%d", *e.CriterionIndex)
			}
			fmt.Fprintf(w, "%6d  tick    %-40s %s %s\n", e.Seq, e.Reading, e.Action, winner)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d tick(s), %d change(s), %d trip(s), last seq %d\n",
		result.Stats.Ticks, result.Stats.Changes, result.Stats.Trips, result.Stats.LastSeq)
	if !result.Stats.Complete {
		fmt.Fprintf(w, "⚠ log incomplete, missing seq: %v\n", result.Gaps)
	}
}
