package compiler

import "fmt"

// ShadowWarning reports a criterion that can never produce the engine's
// action because an earlier criterion always trips first.
//
// Shadowing is a warning, not an error: the criterion is harmless, and it
// may be there on purpose so that removing the earlier one later still
// leaves coverage.
type ShadowWarning struct {
	Index    int    `json:"index"`     // the shadowed criterion
	ShadowBy int    `json:"shadow_by"` // the earlier criterion that wins
	Message  string `json:"message"`
}

// AnalyzeShadowing performs static priority analysis on a configuration.
//
// Two patterns are detected:
//   - A probe criterion after another probe criterion. Probe criteria trip on
//     a leak signal from any probe, so only the first one ever wins.
//   - A flow criterion whose threshold and minimum duration are both at least
//     those of an earlier flow criterion. Whenever it has accumulated enough,
//     the earlier one has too.
//
// Entries with an unknown kind are ignored; Validate reports them.
func AnalyzeShadowing(cfg *Config) []ShadowWarning {
	if cfg == nil {
		return nil
	}

	var warnings []ShadowWarning
	for i, later := range cfg.Criteria {
		for j := 0; j < i; j++ {
			earlier := cfg.Criteria[j]
			if earlier.Kind != later.Kind || !shadows(earlier, later) {
				continue
			}
			warnings = append(warnings, ShadowWarning{
				Index:    i,
				ShadowBy: j,
				Message:  fmt.Sprintf("criteria[%d] (%s) never wins: criteria[%d] always trips first", i, later.Kind, j),
			})
			break
		}
	}
	return warnings
}

func shadows(earlier, later CriterionSpec) bool {
	switch later.Kind {
	case KindProbe:
		return true
	case KindFlowRate:
		return float32(later.RateThreshold) >= float32(earlier.RateThreshold) &&
			later.MinDuration >= earlier.MinDuration
	}
	return false
}
