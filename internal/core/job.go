package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Reference is one auxiliary reference file passed through to the tool as a
// flag/path pair (spectral database, scan-translation rules, calibration
// file, access token).
type Reference struct {
	// Role is a stable identifier for what the reference is (e.g.
	// "calibration", "spectral-db"). Used in diagnostics only.
	Role string

	// Flag is the tool's command-line flag for this reference (e.g. "-s").
	Flag string

	// Path is the reference file location. Optional references may leave it
	// empty; they are then omitted from the tool invocation.
	Path string

	// Required marks references the variant cannot run without.
	Required bool
}

// BatchJob is one task invocation's full description of inputs,
// configuration, and output target.
//
// A BatchJob is created once per task invocation and never mutated
// afterwards; concurrent task runs each own their own job. Input order is
// preserved for diagnostics but carries no semantic weight.
type BatchJob struct {
	// Variant identifies the workflow this job belongs to (e.g. "gcms").
	Variant string

	// Tool is the external tool command to invoke.
	Tool string

	// Subcommand is the tool subcommand selecting the workflow.
	Subcommand string

	// Inputs are the raw data file paths the tool processes as one batch.
	Inputs []string

	// ConfigPath is the tool's parameter file (CoreMS TOML).
	ConfigPath string

	// References are the auxiliary reference files, in the order they are
	// passed to the tool.
	References []Reference

	// Cores is the worker-count hint passed through to the tool opaquely.
	Cores int

	// OutputDir receives one result directory per input file.
	OutputDir string

	// ArtifactExt is the file extension (with dot) that marks a result
	// directory as complete, e.g. ".csv".
	ArtifactExt string

	// AllowedExts restricts input file extensions (lower case, with dot).
	// Empty means any extension is accepted.
	AllowedExts []string

	// Environment is the resolved execution environment identifier
	// (container image reference). Metadata for the surrounding workflow
	// engine: logged, reported, and named in invocation errors, but not
	// acted upon by this layer.
	Environment string

	// SkipProcessed filters out inputs that already have complete results
	// under OutputDir before the tool is dispatched.
	SkipProcessed bool

	// Timeout bounds the tool invocation. Zero means no limit.
	Timeout time.Duration
}

// WithInputs returns a copy of the job restricted to the given inputs.
// Used when already-processed inputs are filtered out before dispatch.
func (j *BatchJob) WithInputs(inputs []string) *BatchJob {
	cp := *j
	cp.Inputs = append([]string(nil), inputs...)
	return &cp
}

// Args builds the tool argument vector for this job: the variant subcommand,
// all input paths joined into a single comma-delimited argument, the output
// directory, the parameter file, any populated references, and the
// worker-count hint.
func (j *BatchJob) Args() []string {
	args := []string{
		j.Subcommand,
		"-i", strings.Join(j.Inputs, ","),
		"-o", j.OutputDir,
		"-c", j.ConfigPath,
	}
	for _, ref := range j.References {
		if ref.Path == "" {
			continue
		}
		args = append(args, ref.Flag, ref.Path)
	}
	args = append(args, "-j", fmt.Sprintf("%d", j.Cores))
	return args
}

// ValidationError reports a BatchJob that must not be dispatched.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Validate checks the job before any invocation is attempted.
//
// Checks, in order:
//  1. at least one input file
//  2. output directory path non-empty
//  3. tool command and parameter file present, parameter file exists
//  4. every input exists and carries an allowed extension
//  5. every required reference is set; every set reference exists
//  6. worker count is at least one
//
// An empty batch is rejected here so the count-equality invariant of the
// verifier never has to decide what zero expected inputs mean in production.
func (j *BatchJob) Validate() error {
	if j == nil {
		return validationf("batch job is nil")
	}
	if len(j.Inputs) == 0 {
		return validationf("no input files to process")
	}
	if strings.TrimSpace(j.OutputDir) == "" {
		return validationf("output directory is required")
	}
	if strings.TrimSpace(j.Tool) == "" {
		return validationf("tool command is required")
	}
	if strings.TrimSpace(j.ConfigPath) == "" {
		return validationf("parameter file is required")
	}
	if _, err := os.Stat(j.ConfigPath); err != nil {
		return validationf("parameter file not found: %s", j.ConfigPath)
	}
	for _, in := range j.Inputs {
		if _, err := os.Stat(in); err != nil {
			return validationf("input file not found: %s", in)
		}
		if !extAllowed(in, j.AllowedExts) {
			return validationf("input file %s is not one of %s", in, strings.Join(j.AllowedExts, ", "))
		}
	}
	for _, ref := range j.References {
		if ref.Path == "" {
			if ref.Required {
				return validationf("%s reference file is required", ref.Role)
			}
			continue
		}
		if _, err := os.Stat(ref.Path); err != nil {
			return validationf("%s reference file not found: %s", ref.Role, ref.Path)
		}
	}
	if j.Cores < 1 {
		return validationf("worker count must be at least 1 (got %d)", j.Cores)
	}
	return nil
}

// IsValidationError reports whether err is a job validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func extAllowed(path string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}
