package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/leakguard/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token,omitempty"`
	Document     string       `json:"document"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, []any and map[string]any.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
			if event.Kind != "" {
				eventMap["kind"] = event.Kind
			}
			traceList[i] = eventMap
			continue
		}

		switch event.Type {
		case TraceTick:
			eventMap["flow_rate"] = event.FlowRate
			eventMap["elapsed"] = event.Elapsed
			eventMap["action"] = event.Action
			eventMap["reason"] = event.Reason
			if len(event.Probes) > 0 {
				probes := make([]any, len(event.Probes))
				for j, p := range event.Probes {
					probes[j] = p
				}
				eventMap["probes"] = probes
			}
			if event.ProbeID != nil {
				eventMap["probe_id"] = *event.ProbeID
			}
			if event.CriterionIndex != nil {
				eventMap["criterion_index"] = *event.CriterionIndex
			}
		case TraceChange:
			eventMap["kind"] = event.Kind
			eventMap["payload"] = event.Payload
			eventMap["document"] = event.Document
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"document":      s.Document,
		"trace":         traceList,
	}
	if s.RunToken != "" {
		result["run_token"] = s.RunToken
	}
	return result
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		RunToken:     result.RunToken,
		Document:     result.Document,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot(scenarioName, result)
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
