package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/ir"
)

func flowState(rate float32) *ir.SensorState {
	return &ir.SensorState{FlowRate: rate, Probes: &ir.ProbeStates{}}
}

func TestFlowRateCriterion_ThresholdInclusive(t *testing.T) {
	c := NewFlowRateCriterion(2.0, 60)

	c.Update(flowState(2.0), 60)

	action, ok := c.Evaluate()
	require.True(t, ok, "flow equal to threshold for exactly min duration must trip")
	assert.Equal(t, ir.NewAction(ir.CloseValve, ir.ExceededFlowRate), action)
	assert.Equal(t, ir.NoProbe, action.ProbeID)
}

func TestFlowRateCriterion_Accumulates(t *testing.T) {
	c := NewFlowRateCriterion(2.0, 60)

	c.Update(flowState(3), 30)
	_, ok := c.Evaluate()
	assert.False(t, ok)
	assert.Equal(t, FlowRateState{Accumulated: 30, Active: true}, c.FlowRateState())

	c.Update(flowState(3), 30)
	_, ok = c.Evaluate()
	assert.True(t, ok)
	assert.Equal(t, ir.Seconds(60), c.FlowRateState().Accumulated)
}

func TestFlowRateCriterion_ResetsBelowThreshold(t *testing.T) {
	c := NewFlowRateCriterion(2.0, 60)

	c.Update(flowState(3), 90)
	_, ok := c.Evaluate()
	require.True(t, ok)

	// No latched state: the first tick below threshold clears everything.
	c.Update(flowState(1.99), 0)
	_, ok = c.Evaluate()
	assert.False(t, ok)
	assert.Equal(t, FlowRateState{}, c.FlowRateState())
}

func TestFlowRateCriterion_ZeroDurationNeedsActive(t *testing.T) {
	c := NewFlowRateCriterion(2.0, 0)

	_, ok := c.Evaluate()
	assert.False(t, ok, "never-updated criterion is idle")

	c.Update(flowState(2.5), 0)
	_, ok = c.Evaluate()
	assert.True(t, ok)
}

func TestFlowRateCriterion_NegativeElapsedNotClamped(t *testing.T) {
	c := NewFlowRateCriterion(2.0, 60)

	c.Update(flowState(3), 30)
	c.Update(flowState(3), -10)

	assert.Equal(t, ir.Seconds(20), c.FlowRateState().Accumulated)
	assert.True(t, c.FlowRateState().Active)
}

func TestProbeCriterion_ReportsConfiguredID(t *testing.T) {
	c := NewProbeCriterion(42)

	var probes ir.ProbeStates
	probes.Set(42)
	c.Update(&ir.SensorState{Probes: &probes}, 1)

	action, ok := c.Evaluate()
	require.True(t, ok)
	assert.Equal(t, ir.NewProbeAction(42), action)
}

func TestProbeCriterion_ScansAllProbes(t *testing.T) {
	// A probe criterion for id 42 also trips on probe 7 and still reports 42.
	c := NewProbeCriterion(42)

	var probes ir.ProbeStates
	probes.Set(7)
	c.Update(&ir.SensorState{Probes: &probes}, 1)

	action, ok := c.Evaluate()
	require.True(t, ok)
	assert.Equal(t, uint8(42), action.ProbeID)
	assert.Equal(t, ir.LeakDetectedByProbe, action.Reason)
}

func TestProbeCriterion_ClearsWhenSignalsStop(t *testing.T) {
	c := NewProbeCriterion(1)

	var probes ir.ProbeStates
	probes.Set(1)
	c.Update(&ir.SensorState{Probes: &probes}, 0)
	assert.True(t, c.ProbeState().LeakDetected)

	probes[1] = false
	c.Update(&ir.SensorState{Probes: &probes}, 0)
	assert.False(t, c.ProbeState().LeakDetected)

	c.Update(&ir.SensorState{}, 0)
	_, ok := c.Evaluate()
	assert.False(t, ok, "nil probe buffer carries no signals")
}

func TestCriterion_ZeroValueIsInert(t *testing.T) {
	var c Criterion
	c.Update(flowState(100), 100)

	_, ok := c.Evaluate()
	assert.False(t, ok)
	assert.Equal(t, "kind(0)", c.String())
}

func TestCriterion_ResetKeepsConfig(t *testing.T) {
	c := NewFlowRateCriterion(2.5, 10)
	c.Update(flowState(3), 5)

	c.Reset()

	assert.Equal(t, FlowRateState{}, c.FlowRateState())
	assert.Equal(t, FlowRateConfig{RateThreshold: 2.5, MinDuration: 10}, c.FlowRate())
}

func TestCriterion_Equal(t *testing.T) {
	a := NewFlowRateCriterion(2, 60)
	b := NewFlowRateCriterion(2, 60)
	b.Update(flowState(5), 10)

	assert.True(t, a.Equal(b), "state is ignored")
	assert.False(t, a.Equal(NewFlowRateCriterion(2, 61)))
	assert.False(t, a.Equal(NewProbeCriterion(2)))
	assert.True(t, NewProbeCriterion(2).Equal(NewProbeCriterion(2)))
}

func TestCriterion_String(t *testing.T) {
	assert.Equal(t, "flow_rate(threshold=2.00 L/min, min_duration=60s)", NewFlowRateCriterion(2, 60).String())
	assert.Equal(t, "probe(id=42)", NewProbeCriterion(42).String())
	assert.Equal(t, "flow_rate", KindFlowRate.String())
	assert.Equal(t, "probe", KindProbe.String())
}
