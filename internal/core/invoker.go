package core

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// ExecutionResult contains the captured output and raw exit status of one
// tool invocation. A non-zero ExitCode is a result, not an error: the
// verifier and arbiter decide what it means.
type ExecutionResult struct {
	// Stdout is the captured standard output.
	Stdout []byte

	// Stderr is the captured standard error.
	Stderr []byte

	// ExitCode is the tool's self-reported exit status.
	ExitCode int

	// Duration is the wall-clock time the tool ran for.
	Duration time.Duration
}

// InvocationError reports that the tool could not be run at all: not found,
// failed to launch, or interrupted before it returned a status. Distinct from
// the tool running and exiting non-zero.
type InvocationError struct {
	Tool        string
	Environment string
	Message     string
	Err         error
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Environment != "" {
		return fmt.Sprintf("%s (%s): %s", e.Tool, e.Environment, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *InvocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsInvocationError reports whether err means the tool never ran to a status.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return stderrors.As(err, &ie)
}

// commandResult is the raw process execution response.
type commandResult struct {
	stdout   []byte
	stderr   []byte
	exitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec in their own process group so the
// whole tool process tree dies on cancellation, not just the leader.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return commandResult{exitCode: -1}, errors.Annotatef(err, "failed to start %s", name)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		// Kill the entire process group (negative PID), then wait for the
		// leader to actually exit before returning.
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return commandResult{
			stdout:   stdout.Bytes(),
			stderr:   stderr.Bytes(),
			exitCode: -1,
		}, ctx.Err()
	case err = <-done:
	}

	result := commandResult{stdout: stdout.Bytes(), stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.exitCode = exitErr.ExitCode()
			return result, nil
		}
		result.exitCode = -1
		return result, errors.Trace(err)
	}
	return result, nil
}

// Invoker dispatches one batch to the external workflow tool and captures its
// output and exit status. It performs exactly one invocation per batch; the
// tool's own worker pool handles per-file parallelism internally.
type Invoker struct {
	runner   commandRunner
	lookPath func(file string) (string, error)
	clock    clock.Clock
	logger   *zap.Logger
}

// NewInvoker creates an Invoker backed by the real process table and wall
// clock.
func NewInvoker(logger *zap.Logger) *Invoker {
	return &Invoker{
		runner:   execRunner{},
		lookPath: exec.LookPath,
		clock:    clock.New(),
		logger:   logger,
	}
}

// Invoke runs the tool once over the job's full batch. The returned
// ExecutionResult carries whatever exit status the tool reported, zero or
// not; an error is returned only when no status could be obtained.
func (inv *Invoker) Invoke(ctx context.Context, job *BatchJob) (*ExecutionResult, error) {
	if job == nil {
		return nil, errors.New("batch job is nil")
	}

	if _, err := inv.lookPath(job.Tool); err != nil {
		return nil, &InvocationError{
			Tool:        job.Tool,
			Environment: job.Environment,
			Message:     "tool not found",
			Err:         err,
		}
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = inv.clock.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	args := job.Args()
	inv.logger.Info("invoking workflow tool",
		zap.String("variant", job.Variant),
		zap.String("tool", job.Tool),
		zap.Strings("args", args),
		zap.String("environment", job.Environment),
		zap.Int("inputs", len(job.Inputs)))

	started := inv.clock.Now()
	result, err := inv.runner.Run(ctx, job.Tool, args...)
	elapsed := inv.clock.Since(started)
	if err != nil {
		msg := "failed to run tool"
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			msg = fmt.Sprintf("timed out after %s", job.Timeout)
		case stderrors.Is(err, context.Canceled):
			msg = "invocation cancelled"
		}
		return nil, &InvocationError{
			Tool:        job.Tool,
			Environment: job.Environment,
			Message:     msg,
			Err:         err,
		}
	}

	inv.logger.Info("workflow tool finished",
		zap.String("variant", job.Variant),
		zap.Int("exit_code", result.exitCode),
		zap.Duration("duration", elapsed))

	return &ExecutionResult{
		Stdout:   result.stdout,
		Stderr:   result.stderr,
		ExitCode: result.exitCode,
		Duration: elapsed,
	}, nil
}
