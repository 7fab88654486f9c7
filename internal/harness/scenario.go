package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a controller test scenario.
// A scenario starts a controller from a criteria document or a CUE
// configuration, drives it through a sequence of steps, and asserts on the
// resulting decision trace and log.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Criteria is the initial criteria document, e.g. "T,200,60,|P,42,|".
	// Exactly one of Criteria and Config may be set; neither means the
	// controller starts with no criteria.
	Criteria string `yaml:"criteria,omitempty"`

	// Config is a path to a CUE configuration file, relative to the
	// scenario file when loaded with LoadScenarioWithBasePath.
	Config string `yaml:"config,omitempty"`

	// Steps are executed in order against one controller run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, document and log.
	// Supported types: encoded, action_count, first_trip, replay_ok
	Assertions []Assertion `yaml:"assertions"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, defaults to testutil.DefaultRunToken.
	RunToken string `yaml:"run_token,omitempty"`
}

// Step is one action against the controller. Exactly one of Tick, Remove,
// Add, Reconfigure and Restart must be set.
type Step struct {
	// Tick feeds one reading.
	Tick *TickStep `yaml:"tick,omitempty"`

	// Remove removes the criterion at this position.
	Remove *int `yaml:"remove,omitempty"`

	// Add appends one encoded criterion record, e.g. "T,200,15,".
	Add string `yaml:"add,omitempty"`

	// Reconfigure replaces all criteria with a decoded document.
	Reconfigure *string `yaml:"reconfigure,omitempty"`

	// Restart abandons the controller and resumes the run from the log,
	// as a process restart would.
	Restart bool `yaml:"restart,omitempty"`

	// Expect validates the decision of a tick step.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// ExpectError marks the step as expected to fail; the error message
	// must contain this text. The run continues after the failure.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// TickStep is a sensor reading as written in YAML.
type TickStep struct {
	FlowRate float32 `yaml:"flow_rate"`
	Probes   []int   `yaml:"probes,omitempty"`
	Elapsed  int64   `yaml:"elapsed"`
}

// ExpectClause specifies the expected decision of a tick.
// Unset fields are not checked.
type ExpectClause struct {
	// Action is "no_action" or "close_valve".
	Action string `yaml:"action"`

	// Reason is "none", "exceeded_flow_rate" or "leak_detected_by_probe".
	Reason string `yaml:"reason,omitempty"`

	ProbeID        *int `yaml:"probe_id,omitempty"`
	CriterionIndex *int `yaml:"criterion_index,omitempty"`
}

// Assertion validates the outcome of the whole scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "encoded": the final criteria document equals Document
	// - "action_count": ticks with Action (and Reason, if set) occur Count times
	// - "first_trip": the first close_valve decision has seq Seq
	// - "replay_ok": replaying the logged run reproduces every decision
	Type string `yaml:"type"`

	// Document is the expected criteria document (used by encoded).
	Document *string `yaml:"document,omitempty"`

	// Action and Reason select ticks (used by action_count).
	Action string `yaml:"action,omitempty"`
	Reason string `yaml:"reason,omitempty"`

	// Count is the expected number of matching ticks (used by action_count).
	Count int `yaml:"count,omitempty"`

	// Seq is the expected seq of the first trip (used by first_trip).
	Seq int64 `yaml:"seq,omitempty"`
}

// Assertion type constants.
const (
	AssertEncoded     = "encoded"
	AssertActionCount = "action_count"
	AssertFirstTrip   = "first_trip"
	AssertReplayOK    = "replay_ok"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the config path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) && basePath != "" {
		scenario.Config = filepath.Join(basePath, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Criteria != "" && s.Config != "" {
		return fmt.Errorf("criteria and config are mutually exclusive")
	}

	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step does exactly one thing.
func validateStep(index int, st *Step) error {
	n := 0
	if st.Tick != nil {
		n++
	}
	if st.Remove != nil {
		n++
	}
	if st.Add != "" {
		n++
	}
	if st.Reconfigure != nil {
		n++
	}
	if st.Restart {
		n++
	}

	if n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of tick, remove, add, reconfigure, restart is required", index)
	}

	if st.Expect != nil {
		if st.Tick == nil {
			return fmt.Errorf("steps[%d]: expect is only valid on tick steps", index)
		}
		if st.Expect.Action == "" {
			return fmt.Errorf("steps[%d].expect: action is required", index)
		}
	}

	if st.Tick != nil {
		for j, p := range st.Tick.Probes {
			if p < 0 || p > 255 {
				return fmt.Errorf("steps[%d].tick.probes[%d]: probe id %d outside 0..255", index, j, p)
			}
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEncoded:
		if a.Document == nil {
			return fmt.Errorf("assertions[%d]: document is required for encoded", index)
		}
	case AssertActionCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for action_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for action_count", index)
		}
	case AssertFirstTrip:
		if a.Seq <= 0 {
			return fmt.Errorf("assertions[%d]: seq must be positive for first_trip", index)
		}
	case AssertReplayOK:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
