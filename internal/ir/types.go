package ir

import "fmt"

// MaxProbes is the capacity of the probe signal buffer.
// The index into the buffer is the probe identifier.
const MaxProbes = 256

// NoProbe is the sentinel carried in Action.ProbeID when the action
// was not raised by a probe. It must not be interpreted as a probe id.
const NoProbe uint8 = 0xFF

// Seconds is the unit for elapsed tick time and configured durations.
type Seconds int64

// ProbeStates holds one leak signal per probe; true means the probe
// currently senses water.
type ProbeStates [MaxProbes]bool

// Set marks the given probes as signalling a leak.
func (p *ProbeStates) Set(ids ...uint8) {
	for _, id := range ids {
		p[id] = true
	}
}

// Active returns the ids of all probes currently signalling, in ascending order.
func (p *ProbeStates) Active() []uint8 {
	var ids []uint8
	for i, on := range p {
		if on {
			ids = append(ids, uint8(i))
		}
	}
	return ids
}

// SensorState is the snapshot supplied by the sensor layer on every tick.
//
// Probes is a pointer so a tick never copies the probe buffer.
// A nil Probes reads as "no probe signals".
type SensorState struct {
	// FlowRate is the water flow in liters per minute. Not validated.
	FlowRate float32

	Probes *ProbeStates
}

// AnyProbe reports whether any probe in the snapshot signals a leak.
func (s *SensorState) AnyProbe() bool {
	if s == nil || s.Probes == nil {
		return false
	}
	for _, on := range s.Probes {
		if on {
			return true
		}
	}
	return false
}

// ActionType is the decision outcome.
type ActionType uint8

const (
	NoAction ActionType = iota
	CloseValve
)

var actionTypeNames = map[ActionType]string{
	NoAction:   "no_action",
	CloseValve: "close_valve",
}

func (t ActionType) String() string {
	if name, ok := actionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("action_type(%d)", uint8(t))
}

// ParseActionType converts the text form produced by String back to an ActionType.
func ParseActionType(s string) (ActionType, error) {
	for t, name := range actionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return NoAction, fmt.Errorf("unknown action type %q", s)
}

// ActionReason explains why an action was taken.
type ActionReason uint8

const (
	ReasonNone ActionReason = iota
	ExceededFlowRate
	LeakDetectedByProbe
)

var actionReasonNames = map[ActionReason]string{
	ReasonNone:          "none",
	ExceededFlowRate:    "exceeded_flow_rate",
	LeakDetectedByProbe: "leak_detected_by_probe",
}

func (r ActionReason) String() string {
	if name, ok := actionReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("action_reason(%d)", uint8(r))
}

// ParseActionReason converts the text form produced by String back to an ActionReason.
func ParseActionReason(s string) (ActionReason, error) {
	for r, name := range actionReasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown action reason %q", s)
}

// Action is the immutable result of a decision.
//
// ProbeID is meaningful only when Reason is LeakDetectedByProbe;
// otherwise it holds NoProbe.
type Action struct {
	Type    ActionType
	Reason  ActionReason
	ProbeID uint8
}

// DefaultAction returns (NoAction, ReasonNone, NoProbe).
func DefaultAction() Action {
	return Action{Type: NoAction, Reason: ReasonNone, ProbeID: NoProbe}
}

// NewAction creates an action that does not carry a probe id.
func NewAction(t ActionType, r ActionReason) Action {
	return Action{Type: t, Reason: r, ProbeID: NoProbe}
}

// NewProbeAction creates a CloseValve action raised by a probe.
func NewProbeAction(probeID uint8) Action {
	return Action{Type: CloseValve, Reason: LeakDetectedByProbe, ProbeID: probeID}
}

// HasProbe reports whether ProbeID may be interpreted.
func (a Action) HasProbe() bool {
	return a.Reason == LeakDetectedByProbe
}

func (a Action) String() string {
	if a.HasProbe() {
		return fmt.Sprintf("%s/%s/probe=%d", a.Type, a.Reason, a.ProbeID)
	}
	return fmt.Sprintf("%s/%s", a.Type, a.Reason)
}
