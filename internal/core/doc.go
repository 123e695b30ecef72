// Package core implements batch dispatch and completion verification for
// externally invoked mass-spectrometry workflows.
//
// The package owns the only nontrivial control flow in the repository: it
// invokes the wrapped analysis tool once over a batch of input files, then
// decides whether the batch actually completed by inspecting the output
// directory rather than trusting the tool's self-reported exit status.
//
// # Core Types
//
// BatchJob: one task invocation's full description of inputs, configuration,
// and output target.
// ExecutionResult: the captured stdout/stderr and raw exit status of one tool
// invocation.
// VerificationVerdict: the filesystem-derived judgment of whether every input
// produced a complete result.
// TaskOutcome: the final, externally visible result of a task run.
//
// The run lifecycle is linear: Invoking -> Verifying -> {Succeeded, Failed}.
// There is no retry loop and no internal parallelism; the tool's own worker
// pool is opaque to this layer.
package core
