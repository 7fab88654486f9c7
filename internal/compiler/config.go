package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
)

// Criterion kinds as written in configuration files.
const (
	KindFlowRate = "flow_rate"
	KindProbe    = "probe"
)

// Config is a compiled controller configuration.
type Config struct {
	// Name is optional; the CLI uses it as the store key when no --name is
	// given.
	Name     string
	Criteria []CriterionSpec
}

// CriterionSpec is one criterion as configured, before it is built into an
// engine criterion. Only the fields matching Kind are meaningful.
type CriterionSpec struct {
	Kind          string
	RateThreshold float64
	MinDuration   int64
	ProbeID       int64

	Pos token.Pos
}

// Build converts the spec into an engine criterion.
func (s CriterionSpec) Build() (engine.Criterion, error) {
	switch s.Kind {
	case KindFlowRate:
		return engine.NewFlowRateCriterion(float32(s.RateThreshold), ir.Seconds(s.MinDuration)), nil
	case KindProbe:
		if s.ProbeID < 0 || s.ProbeID >= int64(ir.NoProbe) {
			return engine.Criterion{}, &CompileError{
				Field:   "probe_id",
				Message: fmt.Sprintf("probe id %d outside 0..%d", s.ProbeID, ir.NoProbe-1),
				Pos:     s.Pos,
			}
		}
		return engine.NewProbeCriterion(uint8(s.ProbeID)), nil
	default:
		return engine.Criterion{}, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown criterion kind %q", s.Kind),
			Pos:     s.Pos,
		}
	}
}

// Engine builds a fresh engine holding every configured criterion in order.
func (c *Config) Engine() (*engine.Engine, error) {
	e := engine.New()
	for i, spec := range c.Criteria {
		cr, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("criteria[%d]: %w", i, err)
		}
		if err := e.AddCriterion(cr); err != nil {
			return nil, fmt.Errorf("criteria[%d]: %w", i, err)
		}
	}
	return e, nil
}

// Document serializes the configuration into a criteria document, the form
// that is persisted and fed to the controller.
func (c *Config) Document() (string, error) {
	e, err := c.Engine()
	if err != nil {
		return "", err
	}
	return codec.Encode(e), nil
}

// CompileFile reads and compiles a CUE configuration file.
func CompileFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileConfig(v)
}

// CompileString compiles CUE configuration source.
func CompileString(src string) (*Config, error) {
	v := cuecontext.New().CompileString(src, cue.Filename("config.cue"))
	return CompileConfig(v)
}

// CompileConfig parses a CUE value into a Config.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the configuration root:
//
//	name: "kitchen"
//	criteria: [
//		{kind: "flow_rate", rate_threshold: 2.0, min_duration: 60},
//		{kind: "probe", probe_id: 42},
//	]
//
// Structural problems (missing fields, wrong types, unknown fields) are
// returned as a *CompileError. Range checks are left to Validate.
func CompileConfig(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if err := checkFields(v, "", "name", "criteria"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cfg.Name = name
	}

	critVal := v.LookupPath(cue.ParsePath("criteria"))
	if !critVal.Exists() {
		return nil, &CompileError{
			Field:   "criteria",
			Message: "criteria is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := critVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		spec, err := parseCriterion(iter.Value(), fmt.Sprintf("criteria[%d]", i))
		if err != nil {
			return nil, err
		}
		cfg.Criteria = append(cfg.Criteria, spec)
	}

	return cfg, nil
}

// parseCriterion parses one entry of the criteria list.
func parseCriterion(v cue.Value, field string) (CriterionSpec, error) {
	spec := CriterionSpec{Pos: v.Pos()}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return spec, &CompileError{Field: field + ".kind", Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Kind = kind

	switch kind {
	case KindFlowRate:
		if err := checkFields(v, field, "kind", "rate_threshold", "min_duration"); err != nil {
			return spec, err
		}
		thresholdVal, err := requireField(v, field, "rate_threshold")
		if err != nil {
			return spec, err
		}
		if spec.RateThreshold, err = thresholdVal.Float64(); err != nil {
			return spec, formatCUEError(err)
		}
		durationVal, err := requireField(v, field, "min_duration")
		if err != nil {
			return spec, err
		}
		if spec.MinDuration, err = durationVal.Int64(); err != nil {
			return spec, formatCUEError(err)
		}

	case KindProbe:
		if err := checkFields(v, field, "kind", "probe_id"); err != nil {
			return spec, err
		}
		idVal, err := requireField(v, field, "probe_id")
		if err != nil {
			return spec, err
		}
		if spec.ProbeID, err = idVal.Int64(); err != nil {
			return spec, formatCUEError(err)
		}

	default:
		// Validate reports the unknown kind with the rest of the problems.
	}

	return spec, nil
}

func requireField(v cue.Value, parent, name string) (cue.Value, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return f, &CompileError{
			Field:   parent + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	return f, nil
}

// checkFields rejects regular fields other than allowed. Typos in a safety
// configuration must not be silently ignored.
func checkFields(v cue.Value, parent string, allowed ...string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		label := iter.Selector().String()
		ok := false
		for _, a := range allowed {
			if label == a {
				ok = true
				break
			}
		}
		if !ok {
			field := label
			if parent != "" {
				field = parent + "." + label
			}
			return &CompileError{
				Field:   field,
				Message: "unknown field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}
