package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrNoConfig           = "E200" // nil configuration
	ErrUnknownKind        = "E201" // kind is neither flow_rate nor probe
	ErrThresholdInvalid   = "E202" // rate_threshold <= 0, non-finite or not representable
	ErrNegativeDuration   = "E203" // min_duration < 0
	ErrProbeIDRange       = "E204" // probe_id outside 0..254
	ErrTooManyCriteria    = "E205" // more entries than the engine holds
	ErrThresholdTooCoarse = "E206" // rate_threshold truncates to zero hundredths
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled configuration against the engine's limits.
// Returns all errors found (does not fail-fast).
func Validate(cfg *Config) []ValidationError {
	if cfg == nil {
		return []ValidationError{{Field: "config", Message: "configuration is nil", Code: ErrNoConfig}}
	}

	var errs []ValidationError

	if len(cfg.Criteria) > engine.MaxCriteria {
		errs = append(errs, ValidationError{
			Field:   "criteria",
			Message: fmt.Sprintf("%d criteria configured, at most %d allowed", len(cfg.Criteria), engine.MaxCriteria),
			Code:    ErrTooManyCriteria,
		})
	}

	for i, spec := range cfg.Criteria {
		errs = append(errs, validateCriterion(spec, fmt.Sprintf("criteria[%d]", i))...)
	}

	return errs
}

func validateCriterion(spec CriterionSpec, field string) []ValidationError {
	var errs []ValidationError
	line := spec.Pos.Line()

	add := func(name, code, msg string) {
		errs = append(errs, ValidationError{Field: field + name, Message: msg, Code: code, Line: line})
	}

	switch spec.Kind {
	case KindFlowRate:
		t := spec.RateThreshold
		switch {
		case math.IsNaN(t) || math.IsInf(t, 0) || t > math.MaxFloat32:
			add(".rate_threshold", ErrThresholdInvalid, fmt.Sprintf("rate_threshold %v is not a finite 32-bit value", t))
		case t <= 0:
			add(".rate_threshold", ErrThresholdInvalid, fmt.Sprintf("rate_threshold %v must be positive", t))
		case t < 0.01:
			add(".rate_threshold", ErrThresholdTooCoarse, fmt.Sprintf("rate_threshold %v is stored in hundredths and would become 0", t))
		}
		if spec.MinDuration < 0 {
			add(".min_duration", ErrNegativeDuration, fmt.Sprintf("min_duration %d must not be negative", spec.MinDuration))
		}

	case KindProbe:
		if spec.ProbeID < 0 || spec.ProbeID >= int64(ir.NoProbe) {
			add(".probe_id", ErrProbeIDRange, fmt.Sprintf("probe_id %d outside 0..%d", spec.ProbeID, ir.NoProbe-1))
		}

	default:
		add(".kind", ErrUnknownKind, fmt.Sprintf("unknown criterion kind %q, want %q or %q", spec.Kind, KindFlowRate, KindProbe))
	}

	return errs
}
