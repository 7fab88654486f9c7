package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basementConfig = `name: "basement"
criteria: [
	{kind: "probe", probe_id: 3},
	{kind: "flow_rate", rate_threshold: 1.25, min_duration: 120},
]
`

// executeCommand runs cmd with args and returns what it wrote to stdout
// and stderr.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "leakguard", cmd.Use)
	assert.Contains(t, cmd.Long, "valve")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "decode", "run", "step", "replay", "trace", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"compile", []string{"output", "db", "name"}},
		{"decode", []string{"strict"}},
		{"run", []string{"db", "config", "name", "criteria", "input", "resume", "metrics-addr"}},
		{"step", []string{"db", "run"}},
		{"replay", []string{"db", "run"}},
		{"trace", []string{"db", "run", "trips-only"}},
		{"test", []string{"update", "filter", "golden"}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestCompileOutputShorthand(t *testing.T) {
	root := NewRootCommand()
	compileCmd, _, err := root.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestRunInputDefaultsToStdin(t *testing.T) {
	root := NewRootCommand()
	runCmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)

	assert.Equal(t, "-", runCmd.Flags().Lookup("input").DefValue)
	assert.Equal(t, "", runCmd.Flags().Lookup("db").DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := executeCommand(t, NewRootCommand(), "--format", "invalid", "decode", "P,1,|")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootDispatchesGlobalFlags(t *testing.T) {
	out, _, err := executeCommand(t, NewRootCommand(), "--format", "json", "decode", "P,1,|")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
}
