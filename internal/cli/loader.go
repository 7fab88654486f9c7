package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/compiler"
	"github.com/roach88/leakguard/internal/store"
)

// Error codes for CLI-level failures. Configuration validation codes
// (E200-E299) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeSource      = "E002" // No or conflicting config source
	ErrCodeNoConfig    = "E003" // Named config not saved
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeStore       = "E006" // Database error
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeMalformed   = "E008" // Malformed criteria document
	ErrCodeInput       = "E009" // Unreadable or invalid reading
)

// LoadError represents an error that occurred while resolving a
// configuration source.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ConfigSource names where a command takes its criteria from. Exactly one
// field must be set.
type ConfigSource struct {
	File     string // CUE configuration file
	Name     string // latest revision saved in the store
	Document string // codec document given verbatim
}

func (s ConfigSource) count() int {
	n := 0
	for _, v := range []string{s.File, s.Name, s.Document} {
		if v != "" {
			n++
		}
	}
	return n
}

// LoadedConfig is a resolved configuration source.
type LoadedConfig struct {
	Document string
	Config   *compiler.Config // nil unless loaded from a CUE file
	Warnings []compiler.ShadowWarning
}

// LoadConfigFile compiles and validates a CUE configuration file.
// Validation errors are returned as a slice so callers can report all of
// them at once.
func LoadConfigFile(path string) (*compiler.Config, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config file: %v", err)}}
	}
	if info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("is a directory: %s", path)}}
	}

	cfg, err := compiler.CompileFile(path)
	if err != nil {
		return nil, []error{err}
	}

	var errs []error
	for _, ve := range compiler.Validate(cfg) {
		errs = append(errs, ve)
	}
	if len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

// LoadConfig resolves src to a criteria document. st is only consulted for
// named configurations and may be nil otherwise.
func LoadConfig(ctx context.Context, src ConfigSource, st *store.Store) (*LoadedConfig, error) {
	switch src.count() {
	case 0:
		return nil, &LoadError{Code: ErrCodeSource, Message: "one of --config, --name or --criteria is required"}
	case 1:
	default:
		return nil, &LoadError{Code: ErrCodeSource, Message: "--config, --name and --criteria are mutually exclusive"}
	}

	switch {
	case src.File != "":
		cfg, errs := LoadConfigFile(src.File)
		if len(errs) > 0 {
			return nil, errs[0]
		}
		doc, err := cfg.Document()
		if err != nil {
			return nil, err
		}
		return &LoadedConfig{Document: doc, Config: cfg, Warnings: compiler.AnalyzeShadowing(cfg)}, nil

	case src.Name != "":
		if st == nil {
			return nil, &LoadError{Code: ErrCodeSource, Message: "--name requires --db"}
		}
		cfg, err := st.LatestConfig(ctx, src.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &LoadError{Code: ErrCodeNoConfig, Message: fmt.Sprintf("no config saved under %q", src.Name)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("loading config %q: %v", src.Name, err)}
		}
		return &LoadedConfig{Document: cfg.Document}, nil

	default:
		if err := strictDocument(src.Document); err != nil {
			return nil, err
		}
		return &LoadedConfig{Document: src.Document}, nil
	}
}

// strictDocument rejects inline documents with records Decode would drop.
func strictDocument(document string) error {
	errs := codec.Validate(document)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &LoadError{Code: ErrCodeMalformed, Message: strings.Join(msgs, "; ")}
}

// MapFieldToErrorCode maps a compiler error field path to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "criteria":
		return compiler.ErrNoConfig
	case strings.HasSuffix(field, ".kind"):
		return compiler.ErrUnknownKind
	case strings.HasSuffix(field, ".rate_threshold"):
		return compiler.ErrThresholdInvalid
	case strings.HasSuffix(field, ".min_duration"):
		return compiler.ErrNegativeDuration
	case strings.HasSuffix(field, ".probe_id"):
		return compiler.ErrProbeIDRange
	default:
		return ErrCodeGeneric
	}
}

// errorCode extracts an error code and message from any error a command
// may report.
func errorCode(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, fmt.Sprintf("%s: %s", validationErr.Field, validationErr.Message)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// errorPos returns the source position carried by err, if any.
func errorPos(err error) token.Pos {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Pos
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Pos
	}
	return token.NoPos
}
