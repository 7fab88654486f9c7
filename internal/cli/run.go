package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/controller"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Source      ConfigSource
	Input       string
	Resume      string
	MetricsAddr string

	// Tokens overrides the run token generator (for testing).
	// If nil, defaults to controller.UUIDv7Generator.
	Tokens controller.TokenGenerator
}

// DecisionRecord is the CLI form of one controller decision.
type DecisionRecord struct {
	Seq            int64   `json:"seq"`
	RunToken       string  `json:"run_token"`
	TickID         string  `json:"tick_id"`
	FlowRate       float32 `json:"flow_rate"`
	Probes         []int   `json:"probes,omitempty"`
	Elapsed        int64   `json:"elapsed"`
	Action         string  `json:"action"`
	Reason         string  `json:"reason"`
	ProbeID        *int    `json:"probe_id,omitempty"`
	CriterionIndex int     `json:"criterion_index"`
}

func newDecisionRecord(d controller.Decision) DecisionRecord {
	rec := DecisionRecord{
		Seq:            d.Seq,
		RunToken:       d.RunToken,
		TickID:         d.TickID,
		FlowRate:       d.Reading.FlowRate,
		Elapsed:        int64(d.Reading.Elapsed),
		Action:         d.Action.Type.String(),
		Reason:         d.Action.Reason.String(),
		CriterionIndex: d.CriterionIndex,
	}
	for _, p := range d.Reading.Probes {
		rec.Probes = append(rec.Probes, int(p))
	}
	if d.Action.HasProbe() {
		id := int(d.Action.ProbeID)
		rec.ProbeID = &id
	}
	return rec
}

// writeDecision prints one decision: a JSON line, or a text line.
func writeDecision(w io.Writer, format string, d controller.Decision) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(newDecisionRecord(d))
	}
	winner := "-"
	if d.CriterionIndex >= 0 {
		winner = fmt.Sprintf("%d", d.CriterionIndex)
	}
	_, err := fmt.Fprintf(w, "seq=%d flow=%g elapsed=%d probes=%v action=%s criterion=%s\n",
		d.Seq, d.Reading.FlowRate, d.Reading.Elapsed, []uint8(d.Reading.Probes), d.Action, winner)
	return err
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the controller with sensor readings",
		Long: `Drive the valve controller with a stream of sensor readings.

Readings are JSON objects, one per line:

  {"flow_rate": 3.0, "probes": [42], "elapsed": 30}

Each reading is one tick; the resulting decision is printed and logged to
the database so the run can be replayed or resumed later. Invalid
readings are logged and skipped. The run ends at end of input or on
Ctrl-C.

Examples:
  leakguard run --db ./leakguard.db --config ./basement.cue < readings.jsonl
  leakguard run --db ./leakguard.db --name basement --input readings.jsonl
  leakguard run --db ./leakguard.db --criteria 'T,200,60,|P,42,|'
  leakguard run --db ./leakguard.db --resume 0190f3a1-... --input more.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Source.File, "config", "", "CUE configuration file")
	cmd.Flags().StringVar(&opts.Source.Name, "name", "", "configuration saved with 'compile --db'")
	cmd.Flags().StringVar(&opts.Source.Document, "criteria", "", "serialized criteria document")
	cmd.Flags().StringVar(&opts.Input, "input", "-", "readings file, or - for stdin")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "continue the run with this token")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// runStats counts what happened to the input.
type runStats struct {
	readings atomic.Int64
	rejected atomic.Int64
	trips    atomic.Int64
}

func runController(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	formatter := newFormatter(opts.RootOptions, cmd)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	input, closeInput, err := openInput(opts.Input, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening input", err)
	}
	defer closeInput()

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	stats := &runStats{}
	ctrlOpts := []controller.Option{
		controller.WithLogger(logger),
		controller.WithActuator(controller.NewLogActuator(logger)),
		controller.WithObserver(func(d controller.Decision) {
			if d.Action != ir.DefaultAction() {
				stats.trips.Add(1)
			}
			if err := writeDecision(formatter.Writer, opts.Format, d); err != nil {
				logger.Error("writing decision", "seq", d.Seq, "error", err)
			}
		}),
	}
	if opts.Tokens != nil {
		ctrlOpts = append(ctrlOpts, controller.WithTokenGenerator(opts.Tokens))
	}

	if opts.MetricsAddr != "" {
		reg := newMetricsRegistry()
		srv, err := startMetricsServer(opts.MetricsAddr, reg, logger)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("metrics server: %v", err), nil)
			return WrapExitError(ExitCommandError, "starting metrics server", err)
		}
		defer srv.Shutdown()
		ctrlOpts = append(ctrlOpts, controller.WithMetrics(reg))
	}

	ctrl, err := newRunController(ctx, opts, st, ctrlOpts, logger)
	if err != nil {
		code, message := errorCode(err)
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, "failed to start controller", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go feedReadings(ctx, input, ctrl, stats, logger)

	err = ctrl.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "controller error", err)
	}

	logger.Info("run finished",
		"run_token", ctrl.RunToken(),
		"readings", stats.readings.Load(),
		"rejected", stats.rejected.Load(),
		"trips", stats.trips.Load(),
	)
	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Run %s: %d reading(s), %d rejected, %d trip(s)\n",
			ctrl.RunToken(), stats.readings.Load(), stats.rejected.Load(), stats.trips.Load())
	}
	return nil
}

// newRunController builds a fresh controller from the configured source, or
// resumes a logged run.
func newRunController(ctx context.Context, opts *RunOptions, st *store.Store, ctrlOpts []controller.Option, logger *slog.Logger) (*controller.Controller, error) {
	if opts.Resume != "" {
		if opts.Source.count() > 0 {
			return nil, &LoadError{Code: ErrCodeSource, Message: "--resume cannot be combined with --config, --name or --criteria"}
		}
		return controller.Resume(ctx, st, opts.Resume, ctrlOpts...)
	}

	loaded, err := LoadConfig(ctx, opts.Source, st)
	if err != nil {
		return nil, err
	}
	for _, w := range loaded.Warnings {
		logger.Warn("criterion never wins", "index", w.Index, "shadowed_by", w.ShadowBy, "detail", w.Message)
	}

	eng := engine.New()
	n := codec.Decode(eng, loaded.Document)
	logger.Debug("criteria loaded", "criteria", n, "document", codec.Encode(eng))

	return controller.New(eng, append(ctrlOpts, controller.WithStore(st))...), nil
}

// feedReadings enqueues one tick per input line and stops the controller at
// end of input. Lines that do not parse are logged and skipped.
func feedReadings(ctx context.Context, r io.Reader, ctrl *controller.Controller, stats *runStats, logger *slog.Logger) {
	defer ctrl.Stop()

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return
		}

		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		reading, err := controller.ParseReading(text)
		if err != nil {
			stats.rejected.Add(1)
			logger.Error("skipping reading", "line", line, "error", err)
			continue
		}

		stats.readings.Add(1)
		if !ctrl.Enqueue(controller.TickEvent(reading)) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading input", "line", line, "error", err)
	}
}

// openInput opens path for reading; "-" (or empty) is stdin.
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("input file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
