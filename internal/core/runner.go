package core

import (
	"context"
	"os"

	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Runner orchestrates one full task run: dispatch the tool over the batch,
// verify the output layout, arbitrate the final status, and collect the
// artifact list.
//
// A Runner holds no cross-run state; concurrent task runs may each use their
// own Runner without coordination. Within one run the flow is strictly
// sequential: one invocation, then one verification pass.
type Runner struct {
	// Invoker dispatches the external workflow tool.
	Invoker *Invoker

	logger *zap.Logger
}

// NewRunner creates a Runner with a production Invoker.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		Invoker: NewInvoker(logger),
		logger:  logger,
	}
}

// TaskOutcome is the final, externally visible result of one task run.
type TaskOutcome struct {
	// State is the terminal lifecycle state.
	State RunState

	// Status is the final exit status after arbitration.
	Status int

	// Invoked reports whether the tool actually ran. False when every input
	// already had a complete result, so there was nothing to dispatch.
	Invoked bool

	// Result is the tool's captured output and raw exit status; nil when
	// Invoked is false.
	Result *ExecutionResult

	// Verdict is the filesystem-derived completion judgment.
	Verdict VerificationVerdict

	// Artifacts lists every file under the output directory, sorted by path.
	// Populated on failed runs too, for diagnostics.
	Artifacts []Artifact

	// Dispatched and Skipped partition the job's inputs into those sent to
	// the tool and those whose results were already complete.
	Dispatched []string
	Skipped    []string
}

// Succeeded reports whether the run reached the SUCCEEDED terminal state.
func (o *TaskOutcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// RawExit returns the tool's self-reported exit status, or 0 when no tool
// ran.
func (o *TaskOutcome) RawExit() int {
	if o.Result == nil {
		return 0
	}
	return o.Result.ExitCode
}

// Run executes the lifecycle for one batch job:
//
//  1. validate the job
//  2. filter out already-processed inputs when the job asks for it
//  3. invoke the tool once over the remaining inputs
//  4. read the output layout and verify completion against the full batch
//  5. arbitrate the final status from verdict and raw exit status
//  6. collect the artifact list
//
// Verification always counts against the job's full input list, including
// skipped inputs: their result directories are part of the expected layout.
// An error return means the run never reached a verdict; an unsuccessful
// outcome with a nil error is a completed run that failed verification.
func (r *Runner) Run(ctx context.Context, job *BatchJob) (*TaskOutcome, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, errors.Annotatef(err, "cannot create output directory %s", job.OutputDir)
	}

	lc := NewLifecycle()
	outcome := &TaskOutcome{Dispatched: job.Inputs}

	dispatch := job
	if job.SkipProcessed {
		pending, done := PartitionProcessed(job.Inputs, job.OutputDir, job.ArtifactExt)
		outcome.Dispatched, outcome.Skipped = pending, done
		if len(done) > 0 {
			r.logger.Info("skipping inputs with complete results",
				zap.String("variant", job.Variant),
				zap.Int("skipped", len(done)),
				zap.Int("pending", len(pending)))
		}
		dispatch = job.WithInputs(pending)
	}

	if len(outcome.Dispatched) > 0 {
		result, err := r.Invoker.Invoke(ctx, dispatch)
		if err != nil {
			return nil, err
		}
		outcome.Invoked = true
		outcome.Result = result
	} else {
		r.logger.Info("all inputs already processed, nothing to dispatch",
			zap.String("variant", job.Variant),
			zap.Int("inputs", len(job.Inputs)))
	}

	if err := lc.Advance(StateVerifying); err != nil {
		return nil, err
	}

	layout, err := ReadOutputLayout(job.OutputDir, job.ArtifactExt)
	if err != nil {
		return nil, err
	}
	outcome.Verdict = Verify(len(job.Inputs), layout)
	outcome.Status = Arbitrate(outcome.Verdict, outcome.RawExit())
	if outcome.Verdict.Complete && outcome.RawExit() != 0 {
		r.logger.Info("tool reported failure but every result is present, suppressing its exit status",
			zap.String("variant", job.Variant),
			zap.Int("raw_exit", outcome.RawExit()))
	}

	terminal := StateFailed
	if outcome.Verdict.Complete {
		terminal = StateSucceeded
	}
	if err := lc.Advance(terminal); err != nil {
		return nil, err
	}
	outcome.State = lc.State()

	outcome.Artifacts, err = CollectArtifacts(job.OutputDir)
	if err != nil {
		return nil, err
	}

	r.logger.Info("batch run finished",
		zap.String("variant", job.Variant),
		zap.String("state", string(outcome.State)),
		zap.Int("raw_exit", outcome.RawExit()),
		zap.Int("final_status", outcome.Status),
		zap.Int("expected", outcome.Verdict.ExpectedCount),
		zap.Int("observed", outcome.Verdict.ObservedCount),
		zap.Int("artifacts", len(outcome.Artifacts)))

	return outcome, nil
}
