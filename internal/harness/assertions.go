package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/leakguard/internal/controller"
	"github.com/roach88/leakguard/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

// describeEvent renders one trace event on a single line.
func describeEvent(e TraceEvent) string {
	switch {
	case e.Error != "":
		return fmt.Sprintf("%s failed: %s", e.Type, e.Error)
	case e.Type == TraceTick:
		s := fmt.Sprintf("tick flow=%s elapsed=%d -> %s/%s", e.FlowRate, e.Elapsed, e.Action, e.Reason)
		if e.ProbeID != nil {
			s += fmt.Sprintf(" probe=%d", *e.ProbeID)
		}
		return s
	case e.Type == TraceChange:
		return fmt.Sprintf("%s %q -> %q", e.Kind, e.Payload, e.Document)
	default:
		return e.Type
	}
}

// assertEncoded checks the criteria document after the last step.
func assertEncoded(result *Result, assertion Assertion) error {
	if result.Document == *assertion.Document {
		return nil
	}
	return &AssertionError{
		Type:     AssertEncoded,
		Expected: fmt.Sprintf("document %q", *assertion.Document),
		Actual:   fmt.Sprintf("document %q", result.Document),
		Trace:    result.Trace,
	}
}

// assertActionCount checks how many ticks decided the given action, and
// reason when one is given.
func assertActionCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != TraceTick || event.Error != "" {
			continue
		}
		if event.Action != assertion.Action {
			continue
		}
		if assertion.Reason != "" && event.Reason != assertion.Reason {
			continue
		}
		count++
	}

	if count == assertion.Count {
		return nil
	}

	what := assertion.Action
	if assertion.Reason != "" {
		what += "/" + assertion.Reason
	}
	return &AssertionError{
		Type:     AssertActionCount,
		Expected: fmt.Sprintf("%s exactly %d times", what, assertion.Count),
		Actual:   fmt.Sprintf("found %d times", count),
		Trace:    trace,
	}
}

// assertFirstTrip checks the seq of the first close_valve decision.
func assertFirstTrip(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == TraceTick && event.Action == "close_valve" {
			if event.Seq == assertion.Seq {
				return nil
			}
			return &AssertionError{
				Type:     AssertFirstTrip,
				Expected: fmt.Sprintf("first trip at seq %d", assertion.Seq),
				Actual:   fmt.Sprintf("first trip at seq %d", event.Seq),
				Trace:    trace,
			}
		}
	}

	return &AssertionError{
		Type:     AssertFirstTrip,
		Expected: fmt.Sprintf("first trip at seq %d", assertion.Seq),
		Actual:   "valve never closed",
		Trace:    trace,
	}
}

// assertReplayOK replays the logged run on a fresh engine.
func assertReplayOK(ctx context.Context, s *store.Store, token string) error {
	r, err := controller.Replay(ctx, s, token)
	if err != nil {
		return fmt.Errorf("replay_ok: %w", err)
	}
	if r.OK() {
		return nil
	}

	var actual []string
	for _, m := range r.Mismatches {
		actual = append(actual, m.String())
	}
	for _, gap := range r.Gaps {
		actual = append(actual, fmt.Sprintf("seq %d missing from log", gap))
	}
	return &AssertionError{
		Type:     AssertReplayOK,
		Expected: "replay reproduces every logged decision",
		Actual:   strings.Join(actual, "; "),
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunToken string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for replay_ok assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEncoded:
			if assertion.Document == nil {
				err = fmt.Errorf("assertion[%d]: encoded requires a document", i)
			} else {
				err = assertEncoded(result, assertion)
			}
		case AssertActionCount:
			err = assertActionCount(result.Trace, assertion)
		case AssertFirstTrip:
			err = assertFirstTrip(result.Trace, assertion)
		case AssertReplayOK:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: replay_ok requires database context", i)
			} else {
				err = assertReplayOK(actx.Ctx, actx.Store, actx.RunToken)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
