package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Strict bool
}

// DecodeResult lists what a document decodes to.
type DecodeResult struct {
	Document   string               `json:"document"`
	Normalized string               `json:"normalized"`
	ConfigHash string               `json:"config_hash"`
	Criteria   []CriterionSummary   `json:"criteria"`
	Skipped    []codec.SegmentError `json:"skipped,omitempty"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <document>",
		Short: "Decode a serialized criteria document",
		Long: `Decode a serialized criteria document and list its criteria.

Records are separated by '|'. A flow rate record is T,<hundredths>,<seconds>,
and a probe record is P,<id>,. Malformed records and records past the
engine's capacity are skipped, exactly as the controller would skip them;
they are listed so the document can be fixed. With --strict any skipped
record fails the command.

Examples:
  leakguard decode 'T,200,60,|P,42,|'
  leakguard decode --strict 'T,200,60,|X,1,|'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail if any record would be skipped")

	return cmd
}

func runDecode(opts *DecodeOptions, document string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng := engine.New()
	codec.Decode(eng, document)
	normalized := codec.Encode(eng)

	result := DecodeResult{
		Document:   document,
		Normalized: normalized,
		ConfigHash: ir.ConfigHash(normalized),
		Criteria:   summarize(eng.Criteria()),
		Skipped:    codec.Validate(document),
	}

	failed := opts.Strict && len(result.Skipped) > 0

	if formatter.JSON() {
		resp := CLIResponse{Status: status(!failed), Data: result}
		if failed {
			resp.Error = &CLIError{
				Code:    ErrCodeMalformed,
				Message: fmt.Sprintf("%d record(s) would be skipped", len(result.Skipped)),
			}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputDecodeText(formatter, result)
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) would be skipped", len(result.Skipped)))
	}
	return nil
}

func outputDecodeText(formatter *OutputFormatter, result DecodeResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "%d criteria\n", len(result.Criteria))
	for _, c := range result.Criteria {
		fmt.Fprintf(w, "  %d: %-16s %s\n", c.Index, c.Record, c.Description)
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "\n%d record(s) skipped:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  %s\n", s.Error())
		}
	}

	fmt.Fprintf(w, "\nNormalized: %s\n", result.Normalized)
}
