package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace against testdata/golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	idx := 0
	probe := 7
	snap := TraceSnapshot{
		ScenarioName: "s",
		Document:     "P,7,|",
		Trace: []TraceEvent{
			{Type: TraceTick, Seq: 1, FlowRate: "0.25", Probes: []int{3}, Elapsed: 2,
				Action: "close_valve", Reason: "leak_detected_by_probe", ProbeID: &probe, CriterionIndex: &idx},
			{Type: TraceRestart, Seq: 1},
		},
	}

	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"document":"P,7,|","scenario_name":"s","trace":[`+
			`{"action":"close_valve","criterion_index":0,"elapsed":2,"flow_rate":"0.25","probe_id":7,"probes":[3],"reason":"leak_detected_by_probe","seq":1,"type":"tick"},`+
			`{"seq":1,"type":"restart"}]}`,
		string(data))
}
