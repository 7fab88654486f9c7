package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/compiler"
	"github.com/roach88/leakguard/internal/controller"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
	"github.com/roach88/leakguard/internal/testutil"
)

// Harness is the test execution engine.
// It drives one controller run with a deterministic clock and run token.
type Harness struct {
	store  *store.Store
	ctrl   *controller.Controller
	clock  *testutil.DeterministicClock
	tokens *testutil.FixedRunToken
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build the initial engine from the criteria document or CUE config
// 3. Start the controller run
// 4. Execute steps with expect validation
// 5. Evaluate assertions and return result with pass/fail, trace, and errors
//
// A returned error means the scenario could not be executed at all. Failed
// steps and assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	eng, err := initialEngine(scenario)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		tokens: testutil.NewFixedRunToken(scenario.RunToken),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.ctrl = controller.New(eng, h.options()...)

	ctx := context.Background()
	result := NewResult()

	token, err := h.ctrl.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	result.RunToken = token

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	result.Document = h.ctrl.Document()

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunToken: token,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) options() []controller.Option {
	return []controller.Option{
		controller.WithStore(h.store),
		controller.WithClock(h.clock),
		controller.WithTokenGenerator(h.tokens),
		controller.WithLogger(h.logger),
	}
}

// initialEngine builds the engine a scenario starts from.
func initialEngine(s *Scenario) (*engine.Engine, error) {
	if s.Config == "" {
		eng := engine.New()
		codec.Decode(eng, s.Criteria)
		return eng, nil
	}

	cfg, err := compiler.CompileFile(s.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config: %w", err)
	}
	if errs := compiler.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errs[0])
	}
	return cfg.Engine()
}

// executeStep runs one step and records it in the trace.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Tick != nil:
		return h.executeTick(ctx, i, step, result)

	case step.Restart:
		resumed, err := controller.Resume(ctx, h.store, result.RunToken, controller.WithLogger(h.logger))
		if err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		h.ctrl = resumed
		result.Trace = append(result.Trace, TraceEvent{Type: TraceRestart, Seq: resumed.Seq()})
		return nil
	}

	var (
		kind    string
		payload string
		err     error
	)
	switch {
	case step.Remove != nil:
		kind, payload = string(store.ChangeRemove), strconv.Itoa(*step.Remove)
		err = h.ctrl.RemoveCriterion(ctx, *step.Remove)

	case step.Add != "":
		kind, payload = string(store.ChangeAdd), step.Add
		cr, ok := codec.DecodeCriterion(step.Add)
		if !ok {
			err = fmt.Errorf("malformed criterion record %q", step.Add)
			break
		}
		payload = codec.EncodeCriterion(cr)
		err = h.ctrl.AddCriterion(ctx, cr)

	case step.Reconfigure != nil:
		kind, payload = string(store.ChangeReconfigure), *step.Reconfigure
		_, err = h.ctrl.Reconfigure(ctx, *step.Reconfigure)
	}

	ev := TraceEvent{
		Type:     TraceChange,
		Seq:      h.ctrl.Seq(),
		Kind:     kind,
		Payload:  payload,
		Document: h.ctrl.Document(),
	}
	if !h.checkError(i, step, err, &ev, result) {
		return nil
	}
	result.Trace = append(result.Trace, ev)

	h.logger.Debug("change step completed",
		"step", i,
		"kind", kind,
		"seq", ev.Seq,
		"document", ev.Document,
	)
	return nil
}

func (h *Harness) executeTick(ctx context.Context, i int, step Step, result *Result) error {
	probes := make(controller.ProbeList, len(step.Tick.Probes))
	for j, p := range step.Tick.Probes {
		probes[j] = uint8(p)
	}
	reading := controller.Reading{
		FlowRate: step.Tick.FlowRate,
		Probes:   probes,
		Elapsed:  ir.Seconds(step.Tick.Elapsed),
	}

	d, err := h.ctrl.Step(ctx, reading)

	ev := TraceEvent{
		Type:     TraceTick,
		Seq:      d.Seq,
		FlowRate: strconv.FormatFloat(float64(step.Tick.FlowRate), 'f', -1, 32),
		Probes:   step.Tick.Probes,
		Elapsed:  step.Tick.Elapsed,
	}
	if !h.checkError(i, step, err, &ev, result) {
		return nil
	}

	index := d.CriterionIndex
	ev.Action = d.Action.Type.String()
	ev.Reason = d.Action.Reason.String()
	ev.CriterionIndex = &index
	if d.Action.HasProbe() {
		id := int(d.Action.ProbeID)
		ev.ProbeID = &id
	}
	result.Trace = append(result.Trace, ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, ev) {
			result.AddError(msg)
		}
	}

	h.logger.Debug("tick step completed",
		"step", i,
		"seq", d.Seq,
		"action", d.Action.String(),
		"criterion_index", d.CriterionIndex,
	)
	return nil
}

// checkError reconciles a step's outcome with its expect_error clause.
// It returns true when the step succeeded and its event should be traced
// as a success. A failed step is traced with its error.
func (h *Harness) checkError(i int, step Step, err error, ev *TraceEvent, result *Result) bool {
	switch {
	case err == nil && step.ExpectError == "":
		return true

	case err == nil:
		result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, step succeeded", i, step.ExpectError))
		return true

	case step.ExpectError == "":
		result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))

	case !strings.Contains(err.Error(), step.ExpectError):
		result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", i, step.ExpectError, err.Error()))
	}

	failed := TraceEvent{Type: ev.Type, Seq: h.ctrl.Seq(), Kind: ev.Kind, Error: err.Error()}
	result.Trace = append(result.Trace, failed)
	return false
}

// checkExpect compares a traced tick against its expect clause.
func checkExpect(i int, exp *ExpectClause, ev TraceEvent) []string {
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("steps[%d] (seq %d): expected %s %v, got %v", i, ev.Seq, field, want, got))
	}

	if exp.Action != ev.Action {
		mismatch("action", exp.Action, ev.Action)
	}
	if exp.Reason != "" && exp.Reason != ev.Reason {
		mismatch("reason", exp.Reason, ev.Reason)
	}
	if exp.ProbeID != nil {
		switch {
		case ev.ProbeID == nil:
			mismatch("probe_id", *exp.ProbeID, "none")
		case *exp.ProbeID != *ev.ProbeID:
			mismatch("probe_id", *exp.ProbeID, *ev.ProbeID)
		}
	}
	if exp.CriterionIndex != nil && *exp.CriterionIndex != *ev.CriterionIndex {
		mismatch("criterion_index", *exp.CriterionIndex, *ev.CriterionIndex)
	}
	return errs
}
