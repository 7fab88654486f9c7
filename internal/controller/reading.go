package controller

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/leakguard/internal/ir"
)

// Reading is one sensor sample as delivered to the controller.
//
// JSON form, one object per line on the CLI:
//
//	{"flow_rate": 3.0, "probes": [42], "elapsed": 30}
type Reading struct {
	// FlowRate in liters per minute.
	FlowRate float32 `json:"flow_rate"`

	// Probes lists the probe ids currently signaling a leak.
	Probes ProbeList `json:"probes,omitempty"`

	// Elapsed is the time since the previous reading.
	Elapsed ir.Seconds `json:"elapsed"`
}

// Validate rejects readings the engine must not see. The engine does not
// clamp elapsed, so a negative value would corrupt the flow accumulators.
func (r Reading) Validate() error {
	f := float64(r.FlowRate)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("flow_rate must be finite, got %v", r.FlowRate)
	}
	if r.Elapsed < 0 {
		return fmt.Errorf("elapsed must be >= 0, got %d", r.Elapsed)
	}
	return nil
}

// State converts the reading to the engine's sensor snapshot.
func (r Reading) State() *ir.SensorState {
	var probes ir.ProbeStates
	probes.Set(r.Probes...)
	return &ir.SensorState{FlowRate: r.FlowRate, Probes: &probes}
}

// ParseReading decodes and validates one JSON reading.
func ParseReading(data []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return Reading{}, fmt.Errorf("parse reading: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, fmt.Errorf("parse reading: %w", err)
	}
	return r, nil
}

// ProbeList is a list of probe ids that encodes as a JSON number array
// (encoding/json would otherwise treat []uint8 as base64).
type ProbeList []uint8

// MarshalJSON implements json.Marshaler.
func (p ProbeList) MarshalJSON() ([]byte, error) {
	ids := make([]int, len(p))
	for i, id := range p {
		ids[i] = int(id)
	}
	return json.Marshal(ids)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProbeList) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("probes: %w", err)
	}
	out := make(ProbeList, len(ids))
	for i, id := range ids {
		if id < 0 || id >= ir.MaxProbes {
			return fmt.Errorf("probes: id %d out of range [0, %d)", id, ir.MaxProbes)
		}
		out[i] = uint8(id)
	}
	*p = out
	return nil
}
