package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/compiler"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	OutputFile string
	Database   string
	Name       string
}

// CriterionSummary describes one criterion for CLI output.
type CriterionSummary struct {
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Record      string `json:"record"`
	Description string `json:"description"`
}

// SavedConfig reports where a compiled document was stored.
type SavedConfig struct {
	Name     string `json:"name"`
	Seq      int64  `json:"seq"`
	Inserted bool   `json:"inserted"`
}

// CompilationResult holds the output of a successful compilation.
type CompilationResult struct {
	Name       string                   `json:"name,omitempty"`
	Document   string                   `json:"document"`
	ConfigHash string                   `json:"config_hash"`
	Criteria   []CriterionSummary       `json:"criteria"`
	Warnings   []compiler.ShadowWarning `json:"warnings,omitempty"`
	Saved      *SavedConfig             `json:"saved,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <config.cue>",
		Short: "Compile a CUE configuration to a criteria document",
		Long: `Compile a CUE criteria configuration to its serialized document.

The configuration is validated against the engine's limits and checked
for criteria that can never win. With --db the document is saved as the
latest revision of --name (defaulting to the configuration's name field),
ready for 'leakguard run --name'.

Examples:
  leakguard compile ./basement.cue
  leakguard compile ./basement.cue -o basement.doc
  leakguard compile ./basement.cue --db ./leakguard.db --name basement`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "", "write the document to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "save the document to this SQLite database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "configuration name to save under (requires --db)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, errs := LoadConfigFile(path)
	if len(errs) > 0 {
		_ = formatter.Errors("Compilation failed", errs)
		if cfg == nil {
			return WrapExitError(ExitCommandError, "compilation failed", errs[0])
		}
		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}
	formatter.VerboseLog("Compiled %d criteria from %s", len(cfg.Criteria), path)

	doc, err := cfg.Document()
	if err != nil {
		_ = formatter.Errors("Compilation failed", []error{err})
		return WrapExitError(ExitFailure, "compilation failed", err)
	}

	result := CompilationResult{
		Name:       cfg.Name,
		Document:   doc,
		ConfigHash: ir.ConfigHash(doc),
		Criteria:   summarize(codec.DecodeAll(doc)),
		Warnings:   compiler.AnalyzeShadowing(cfg),
	}

	if opts.OutputFile != "" {
		if err := os.WriteFile(opts.OutputFile, []byte(doc), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		formatter.VerboseLog("Wrote document to %s", opts.OutputFile)
	}

	if opts.Database != "" {
		saved, err := saveCompiled(cmd.Context(), opts, cfg.Name, doc)
		if err != nil {
			code, message := errorCode(err)
			_ = formatter.Error(code, message, nil)
			return WrapExitError(ExitCommandError, "saving config", err)
		}
		result.Saved = saved
	} else if opts.Name != "" {
		_ = formatter.Error(ErrCodeSource, "--name requires --db", nil)
		return NewExitError(ExitCommandError, "--name requires --db")
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputCompileText(formatter, result, opts.OutputFile)
	return nil
}

func saveCompiled(ctx context.Context, opts *CompileOptions, cfgName, doc string) (*SavedConfig, error) {
	name := opts.Name
	if name == "" {
		name = cfgName
	}
	if name == "" {
		return nil, &LoadError{Code: ErrCodeSource, Message: "--name is required when the configuration has no name field"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("opening database: %v", err)}
	}
	defer st.Close()

	cfg, inserted, err := st.SaveConfig(ctx, name, doc)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	return &SavedConfig{Name: cfg.Name, Seq: cfg.Seq, Inserted: inserted}, nil
}

// summarize describes criteria in priority order.
func summarize(criteria []engine.Criterion) []CriterionSummary {
	out := make([]CriterionSummary, len(criteria))
	for i, c := range criteria {
		out[i] = CriterionSummary{
			Index:       i,
			Kind:        c.Kind().String(),
			Record:      codec.EncodeCriterion(c),
			Description: c.String(),
		}
	}
	return out
}

func outputCompileText(formatter *OutputFormatter, result CompilationResult, outputFile string) {
	w := formatter.Writer

	fmt.Fprintf(w, "✓ Compiled %d criteria\n\n", len(result.Criteria))
	for _, c := range result.Criteria {
		fmt.Fprintf(w, "  %d: %s\n", c.Index, c.Description)
	}
	fmt.Fprintln(w)

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ criteria[%d]: %s\n", warning.Index, warning.Message)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Document: %s\n", result.Document)
	fmt.Fprintf(w, "Hash:     %s\n", result.ConfigHash)

	if result.Saved != nil {
		if result.Saved.Inserted {
			fmt.Fprintf(w, "Saved as %s (revision %d)\n", result.Saved.Name, result.Saved.Seq)
		} else {
			fmt.Fprintf(w, "Unchanged: %s is already at revision %d\n", result.Saved.Name, result.Saved.Seq)
		}
	}
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote document to %s\n", outputFile)
	}
}
