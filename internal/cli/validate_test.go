package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/compiler"
)

func TestValidateValidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "basement.cue", basementConfig)

	out, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "2 criteria valid")
}

func TestValidateReportsAllErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `criteria: [
	{kind: "valve"},
	{kind: "flow_rate", rate_threshold: 0.001, min_duration: 10},
	{kind: "probe", probe_id: 300},
]
`)

	out, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "3 error(s)")
	assert.Contains(t, out, compiler.ErrUnknownKind)
	assert.Contains(t, out, compiler.ErrThresholdTooCoarse)
	assert.Contains(t, out, compiler.ErrProbeIDRange)
}

func TestValidateJSONWithWarnings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shadow.cue", `criteria: [
	{kind: "flow_rate", rate_threshold: 2, min_duration: 60},
	{kind: "flow_rate", rate_threshold: 3, min_duration: 90},
]
`)

	out, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Criteria)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, 1, resp.Data.Warnings[0].Index)
	assert.Equal(t, 0, resp.Data.Warnings[0].ShadowBy)
}

func TestValidateTooManyCriteria(t *testing.T) {
	src := "criteria: [\n"
	for i := 0; i < 11; i++ {
		src += "\t{kind: \"flow_rate\", rate_threshold: 1, min_duration: 1},\n"
	}
	src += "]\n"
	path := writeFile(t, t.TempDir(), "many.cue", src)

	out, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, out, compiler.ErrTooManyCriteria)
}

func TestValidateUnknownField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typo.cue", `criteria: [{kind: "probe", probe_id: 1, probeid: 2}]`)

	out, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "unknown field")
}

func TestValidateNonExistentFile(t *testing.T) {
	_, _, err := executeCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
