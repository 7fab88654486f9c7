package store

import (
	"github.com/roach88/leakguard/internal/ir"
)

// ConfigVersion is one saved revision of a named criteria document.
type ConfigVersion struct {
	Seq           int64
	Name          string
	Document      string
	ConfigHash    string
	EngineVersion string
	FormatVersion string
}

// Run records the document a controller run started from.
type Run struct {
	Token         string
	Document      string
	ConfigHash    string
	StartSeq      int64
	EngineVersion string
	FormatVersion string
}

// Tick is one logged decision: the reading fed to the engine and the
// action it resolved to.
type Tick struct {
	ID       string
	RunToken string
	Seq      int64

	FlowRate float32
	Probes   []uint8
	Elapsed  ir.Seconds

	Action ir.Action

	// CriterionIndex is the position of the winning criterion, or -1.
	CriterionIndex int

	// ConfigHash identifies the criteria document in effect for this tick.
	ConfigHash string
}

// State rebuilds the sensor snapshot that produced the tick.
func (t Tick) State() *ir.SensorState {
	var probes ir.ProbeStates
	probes.Set(t.Probes...)
	return &ir.SensorState{FlowRate: t.FlowRate, Probes: &probes}
}

// ChangeKind names a criteria mutation applied during a run.
type ChangeKind string

const (
	// ChangeReconfigure replaces all criteria; Payload is a codec document.
	ChangeReconfigure ChangeKind = "reconfigure"

	// ChangeRemove removes one criterion; Payload is its decimal index.
	ChangeRemove ChangeKind = "remove"

	// ChangeAdd appends one criterion; Payload is a single codec record.
	ChangeAdd ChangeKind = "add"
)

// Change is a logged criteria mutation.
type Change struct {
	ID       string
	RunToken string
	Seq      int64
	Kind     ChangeKind
	Payload  string

	// ConfigHash identifies the document after the change was applied.
	ConfigHash string
}
