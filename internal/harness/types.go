package harness

// Trace event types.
const (
	TraceTick    = "tick"
	TraceChange  = "change"
	TraceRestart = "restart"
)

// TraceEvent is one entry of a scenario trace: a decided tick, an applied
// criteria change, or a restart. Only the fields of the event's Type are set.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// Tick fields. FlowRate is the shortest decimal form of the float32
	// reading; canonical JSON carries no floats.
	FlowRate       string `json:"flow_rate,omitempty"`
	Probes         []int  `json:"probes,omitempty"`
	Elapsed        int64  `json:"elapsed,omitempty"`
	Action         string `json:"action,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ProbeID        *int   `json:"probe_id,omitempty"`
	CriterionIndex *int   `json:"criterion_index,omitempty"`

	// Change fields. Document is the criteria document after the change.
	Kind     string `json:"kind,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Document string `json:"document,omitempty"`

	// Error is set when a step failed as expected.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// RunToken is the token of the controller run.
	RunToken string `json:"run_token"`

	// Trace contains all ticks, changes and restarts in order.
	Trace []TraceEvent `json:"trace"`

	// Document is the criteria document after the last step.
	Document string `json:"document"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Ticks returns the tick events of the trace in order.
func (r *Result) Ticks() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == TraceTick {
			out = append(out, e)
		}
	}
	return out
}
