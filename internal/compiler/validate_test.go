package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	cfg := &Config{Criteria: []CriterionSpec{
		{Kind: KindFlowRate, RateThreshold: 2, MinDuration: 60},
		{Kind: KindFlowRate, RateThreshold: 0.01, MinDuration: 0},
		{Kind: KindProbe, ProbeID: 0},
		{Kind: KindProbe, ProbeID: 254},
	}}

	errs := Validate(cfg)
	assert.Empty(t, errs, "valid config should have no errors")
}

func TestValidateNil(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoConfig, errs[0].Code)
}

func TestValidateCriterionErrors(t *testing.T) {
	tests := []struct {
		name  string
		spec  CriterionSpec
		code  string
		field string
	}{
		{"unknown kind", CriterionSpec{Kind: "pressure"}, ErrUnknownKind, "criteria[0].kind"},
		{"zero threshold", CriterionSpec{Kind: KindFlowRate}, ErrThresholdInvalid, "criteria[0].rate_threshold"},
		{"negative threshold", CriterionSpec{Kind: KindFlowRate, RateThreshold: -1}, ErrThresholdInvalid, "criteria[0].rate_threshold"},
		{"NaN threshold", CriterionSpec{Kind: KindFlowRate, RateThreshold: math.NaN()}, ErrThresholdInvalid, "criteria[0].rate_threshold"},
		{"infinite threshold", CriterionSpec{Kind: KindFlowRate, RateThreshold: math.Inf(1)}, ErrThresholdInvalid, "criteria[0].rate_threshold"},
		{"threshold overflows float32", CriterionSpec{Kind: KindFlowRate, RateThreshold: 1e39}, ErrThresholdInvalid, "criteria[0].rate_threshold"},
		{"threshold below a hundredth", CriterionSpec{Kind: KindFlowRate, RateThreshold: 0.005}, ErrThresholdTooCoarse, "criteria[0].rate_threshold"},
		{"negative duration", CriterionSpec{Kind: KindFlowRate, RateThreshold: 1, MinDuration: -5}, ErrNegativeDuration, "criteria[0].min_duration"},
		{"negative probe", CriterionSpec{Kind: KindProbe, ProbeID: -1}, ErrProbeIDRange, "criteria[0].probe_id"},
		{"sentinel probe", CriterionSpec{Kind: KindProbe, ProbeID: 255}, ErrProbeIDRange, "criteria[0].probe_id"},
		{"probe too large", CriterionSpec{Kind: KindProbe, ProbeID: 1000}, ErrProbeIDRange, "criteria[0].probe_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Config{Criteria: []CriterionSpec{tt.spec}})
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := &Config{Criteria: []CriterionSpec{
		{Kind: KindFlowRate, RateThreshold: 0, MinDuration: -1},
		{Kind: KindProbe, ProbeID: 300},
		{Kind: "x"},
	}}

	errs := Validate(cfg)
	assert.Equal(t, []string{ErrThresholdInvalid, ErrNegativeDuration, ErrProbeIDRange, ErrUnknownKind}, codes(errs))
}

func TestValidateTooManyCriteria(t *testing.T) {
	cfg := &Config{}
	for i := 0; i < 11; i++ {
		cfg.Criteria = append(cfg.Criteria, CriterionSpec{Kind: KindProbe, ProbeID: int64(i)})
	}

	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTooManyCriteria, errs[0].Code)
	assert.Contains(t, errs[0].Message, "at most 10")
}

func TestValidateCarriesLine(t *testing.T) {
	cfg, err := CompileString("criteria: [\n\t{kind: \"probe\", probe_id: 1},\n\t{kind: \"probe\", probe_id: 900},\n]\n")
	require.NoError(t, err)

	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, "[E204] line 3: criteria[1].probe_id: probe_id 900 outside 0..254", errs[0].Error())
}

func TestValidationErrorWithoutLine(t *testing.T) {
	e := ValidationError{Field: "criteria", Message: "too many", Code: ErrTooManyCriteria}
	assert.Equal(t, "[E205] criteria: too many", e.Error())
}
