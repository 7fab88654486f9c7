package engine

import (
	"fmt"

	"github.com/roach88/leakguard/internal/ir"
)

// Kind tags the criterion variant held by a Criterion.
type Kind uint8

const (
	// KindFlowRate closes the valve when the flow rate stays at or above a
	// threshold for a minimum duration.
	KindFlowRate Kind = iota + 1

	// KindProbe closes the valve when a probe signals a leak.
	KindProbe
)

func (k Kind) String() string {
	switch k {
	case KindFlowRate:
		return "flow_rate"
	case KindProbe:
		return "probe"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FlowRateConfig configures a time-based flow rate criterion.
type FlowRateConfig struct {
	// RateThreshold in liters per minute; the comparison is inclusive.
	RateThreshold float32

	// MinDuration the flow must be sustained before the criterion trips.
	MinDuration ir.Seconds
}

// FlowRateState is the per-tick accumulator of a flow rate criterion.
// Accumulated is zero whenever Active is false.
type FlowRateState struct {
	Accumulated ir.Seconds
	Active      bool
}

// ProbeConfig configures a probe leak criterion.
type ProbeConfig struct {
	ProbeID uint8
}

// ProbeState records whether a leak signal was seen on the last tick.
type ProbeState struct {
	LeakDetected bool
}

// Criterion is a closed tagged variant over the known leak detection rules.
//
// Each variant is an explicit (config, state) pair. Config never changes
// after construction; state is updated in place by Update. Criterion is a
// plain value so the engine can hold criteria in a fixed array without
// heap allocation.
//
// The zero Criterion has no kind; it never updates and never yields an action.
type Criterion struct {
	kind Kind

	flow      FlowRateConfig
	flowState FlowRateState

	probe      ProbeConfig
	probeState ProbeState
}

// NewFlowRateCriterion creates a criterion that trips when the flow rate is
// at or above threshold (L/min) for at least minDuration.
func NewFlowRateCriterion(threshold float32, minDuration ir.Seconds) Criterion {
	return Criterion{
		kind: KindFlowRate,
		flow: FlowRateConfig{RateThreshold: threshold, MinDuration: minDuration},
	}
}

// NewProbeCriterion creates a criterion that trips on probe leak signals and
// reports probeID as the source.
func NewProbeCriterion(probeID uint8) Criterion {
	return Criterion{
		kind:  KindProbe,
		probe: ProbeConfig{ProbeID: probeID},
	}
}

// Kind returns the variant tag.
func (c Criterion) Kind() Kind { return c.kind }

// FlowRate returns the flow rate config. Valid only for KindFlowRate.
func (c Criterion) FlowRate() FlowRateConfig { return c.flow }

// FlowRateState returns the accumulator. Valid only for KindFlowRate.
func (c Criterion) FlowRateState() FlowRateState { return c.flowState }

// Probe returns the probe config. Valid only for KindProbe.
func (c Criterion) Probe() ProbeConfig { return c.probe }

// ProbeState returns the probe state. Valid only for KindProbe.
func (c Criterion) ProbeState() ProbeState { return c.probeState }

// Update advances the criterion by one tick.
//
// elapsed is added to the flow accumulator verbatim; it is not clamped, so a
// negative value decrements it. Callers must supply elapsed >= 0.
func (c *Criterion) Update(state *ir.SensorState, elapsed ir.Seconds) {
	switch c.kind {
	case KindFlowRate:
		if state.FlowRate >= c.flow.RateThreshold {
			c.flowState.Active = true
			c.flowState.Accumulated += elapsed
		} else {
			c.flowState.Active = false
			c.flowState.Accumulated = 0
		}

	case KindProbe:
		// NOTE: scans every probe, not only c.probe.ProbeID. The configured
		// id labels the resulting action but does not filter the signals.
		c.probeState.LeakDetected = state.AnyProbe()
	}
}

// Evaluate projects the current state onto an action.
// The second result is false when the criterion does not ask for anything.
func (c Criterion) Evaluate() (ir.Action, bool) {
	switch c.kind {
	case KindFlowRate:
		if c.flowState.Active && c.flowState.Accumulated >= c.flow.MinDuration {
			return ir.NewAction(ir.CloseValve, ir.ExceededFlowRate), true
		}

	case KindProbe:
		if c.probeState.LeakDetected {
			return ir.NewProbeAction(c.probe.ProbeID), true
		}
	}
	return ir.Action{}, false
}

// Reset clears the mutable state and keeps the config.
func (c *Criterion) Reset() {
	c.flowState = FlowRateState{}
	c.probeState = ProbeState{}
}

// Equal reports whether two criteria have the same kind and config.
// State is ignored.
func (c Criterion) Equal(other Criterion) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case KindFlowRate:
		return c.flow == other.flow
	case KindProbe:
		return c.probe == other.probe
	}
	return true
}

func (c Criterion) String() string {
	switch c.kind {
	case KindFlowRate:
		return fmt.Sprintf("flow_rate(threshold=%.2f L/min, min_duration=%ds)",
			c.flow.RateThreshold, c.flow.MinDuration)
	case KindProbe:
		return fmt.Sprintf("probe(id=%d)", c.probe.ProbeID)
	default:
		return c.kind.String()
	}
}
