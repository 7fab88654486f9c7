package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	zero, minus := 0, -1
	probe := 4
	return []TraceEvent{
		{Type: TraceTick, Seq: 1, FlowRate: "1", Elapsed: 5, Action: "no_action", Reason: "none", CriterionIndex: &minus},
		{Type: TraceChange, Seq: 2, Kind: "add", Payload: "P,4,", Document: "P,4,|"},
		{Type: TraceTick, Seq: 3, FlowRate: "0", Action: "close_valve", Reason: "leak_detected_by_probe", ProbeID: &probe, CriterionIndex: &zero},
		{Type: TraceTick, Seq: 4, FlowRate: "3", Action: "close_valve", Reason: "exceeded_flow_rate", CriterionIndex: &zero},
		{Type: TraceTick, Seq: 4, Error: "step: elapsed must be >= 0, got -1"},
	}
}

func TestAssertActionCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertActionCount(trace, Assertion{Action: "close_valve", Count: 2}))
	assert.NoError(t, assertActionCount(trace, Assertion{Action: "close_valve", Reason: "exceeded_flow_rate", Count: 1}))
	assert.NoError(t, assertActionCount(trace, Assertion{Action: "no_action", Count: 1}))

	err := assertActionCount(trace, Assertion{Action: "close_valve", Count: 3})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "found 2 times", ae.Actual)
}

func TestAssertFirstTrip(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertFirstTrip(trace, Assertion{Seq: 3}))

	err := assertFirstTrip(trace, Assertion{Seq: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first trip at seq 3")

	err = assertFirstTrip(trace[:2], Assertion{Seq: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valve never closed")
}

func TestAssertEncoded(t *testing.T) {
	result := &Result{Document: "P,4,|", Trace: sampleTrace()}

	assert.NoError(t, assertEncoded(result, Assertion{Document: strPtr("P,4,|")}))
	err := assertEncoded(result, Assertion{Document: strPtr("")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Actual: document "P,4,|"`)
}

func TestAssertionError_TraceRendering(t *testing.T) {
	err := &AssertionError{Type: "action_count", Expected: "x", Actual: "y", Trace: sampleTrace()}
	msg := err.Error()

	assert.Contains(t, msg, "Assertion failed: action_count")
	assert.Contains(t, msg, "[1] tick flow=1 elapsed=5 -> no_action/none")
	assert.Contains(t, msg, `[2] add "P,4," -> "P,4,|"`)
	assert.Contains(t, msg, "probe=4")
	assert.Contains(t, msg, "tick failed: step: elapsed")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Document: "", Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertActionCount, Action: "close_valve", Count: 2},
		{Type: AssertEncoded},
		{Type: AssertReplayOK},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "encoded requires a document")
	assert.Contains(t, errs[1], "replay_ok requires database context")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestAssertReplayOK_UnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := assertReplayOK(context.Background(), s, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay_ok")
}
