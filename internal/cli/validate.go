package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                     `json:"valid"`
	Criteria int                      `json:"criteria"`
	Errors   []CLIError               `json:"errors,omitempty"`
	Warnings []compiler.ShadowWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a configuration without compiling it",
		Long: `Validate a CUE criteria configuration.

Reports every problem at once: unknown kinds, thresholds the document
format cannot carry, negative durations, probe ids outside 0..254 and
more criteria than the engine holds. Criteria that can never win because
an earlier one always trips first are reported as warnings.

Exit codes:
  0 - Configuration is valid (warnings allowed)
  1 - Configuration has validation errors
  2 - Command error (file not found, CUE syntax error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, errs := LoadConfigFile(path)
	if cfg == nil {
		_ = formatter.Errors("Validation failed", errs)
		return WrapExitError(ExitCommandError, "validation failed", errs[0])
	}

	result := ValidationResult{
		Valid:    len(errs) == 0,
		Criteria: len(cfg.Criteria),
		Warnings: compiler.AnalyzeShadowing(cfg),
	}
	for _, err := range errs {
		code, message := errorCode(err)
		result.Errors = append(result.Errors, CLIError{Code: code, Message: message})
	}

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{Status: status(result.Valid), Data: result}); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, path, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func outputValidateText(formatter *OutputFormatter, path string, result ValidationResult) {
	w := formatter.Writer

	if result.Valid {
		fmt.Fprintf(w, "✓ %s: %d criteria valid\n", path, result.Criteria)
	} else {
		fmt.Fprintf(w, "✗ %s: %d error(s)\n", path, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
		}
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ criteria[%d]: %s\n", warning.Index, warning.Message)
	}
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
