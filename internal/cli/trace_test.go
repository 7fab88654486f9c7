package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/store"
)

func TestTraceMissingFlags(t *testing.T) {
	_, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}), "--run", "run-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, _, err = executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", "/nonexistent/leakguard.db", "--run", "run-a")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leakguard.db")
	recordRun(t, dbPath, "run-a")

	out, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: nope")
}

func TestTraceText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leakguard.db")
	recordRun(t, dbPath, "run-a")

	out, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	assert.Contains(t, out, "Run run-a")
	assert.Contains(t, out, `started at seq 0 with "T,200,60,|P,42,|"`)
	assert.Contains(t, out, "change  remove      0")
	assert.Contains(t, out, "change  add         T,200,10,")
	assert.Contains(t, out, "close_valve/exceeded_flow_rate #1")
	assert.Contains(t, out, "close_valve/leak_detected_by_probe/probe=42 #0")
	assert.Contains(t, out, "3 tick(s), 2 change(s), 2 trip(s), last seq 5")
	assert.NotContains(t, out, "log incomplete")
}

func TestTraceJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leakguard.db")
	recordRun(t, dbPath, "run-a")

	out, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	result := resp.Data
	assert.Equal(t, "run-a", result.RunToken)
	assert.True(t, result.Stats.Complete)
	require.Len(t, result.Timeline, 5)

	types := make([]string, 0, len(result.Timeline))
	for i, e := range result.Timeline {
		assert.Equal(t, int64(i+1), e.Seq, "timeline is in seq order")
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{"tick", "change", "change", "tick", "tick"}, types)

	assert.Nil(t, result.Timeline[0].CriterionIndex)
	require.NotNil(t, result.Timeline[3].CriterionIndex)
	assert.Equal(t, 1, *result.Timeline[3].CriterionIndex)
	assert.NotEqual(t, result.Timeline[0].ConfigHash, result.Timeline[3].ConfigHash,
		"changes move the config hash")
}

func TestTraceTripsOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leakguard.db")
	recordRun(t, dbPath, "run-a")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	h, err := st.GetRunHistory(context.Background(), "run-a")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	result := buildTrace(h, true)
	require.Len(t, result.Timeline, 4, "the idle first tick is dropped; changes stay")
	assert.Equal(t, "change", result.Timeline[0].Type)
	assert.Equal(t, int64(4), result.Timeline[2].Seq)
	assert.Equal(t, 3, result.Stats.Ticks, "stats cover the whole run")
}

func TestTraceReportsGaps(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leakguard.db")
	recordRun(t, dbPath, "run-a")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`DELETE FROM ticks WHERE seq = 4`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := executeCommand(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "⚠ log incomplete, missing seq: [4]")
}
