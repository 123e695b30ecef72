package cli

import (
	"errors"
	"fmt"

	"msbatch/internal/core"
	"msbatch/internal/workflow"
)

// Exit statuses this layer assigns itself. A failed batch re-surfaces the
// tool's own raw status instead, so values outside this list (e.g. 137) are
// the tool's, not ours.
const (
	ExitSuccess           = 0
	ExitBatchIncomplete   = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInvocationError   = 4
)

// exitError carries a process exit status out of a command. A nil wrapped
// error means the command already reported the condition and only the status
// is left to deliver.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// exitWith pairs an exit status with an optional error to report.
func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// statusError attaches the semantic exit status for err's kind. Errors that
// already carry a status pass through unchanged.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	return &exitError{code: codeFor(err), err: err}
}

// codeFor maps a domain error to the process exit status. Validation
// failures are the operator's to fix (2), unusable configuration is 3, and
// invocation errors plus anything else that stopped the run before a verdict
// report 4.
func codeFor(err error) int {
	switch {
	case core.IsValidationError(err):
		return ExitInvalidInvocation
	case workflow.IsConfigError(err):
		return ExitConfigError
	default:
		return ExitInvocationError
	}
}
