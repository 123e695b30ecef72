package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// completeWriter is a fake tool that writes a complete result directory for
// every input it receives, then exits with the given status.
func completeWriter(t *testing.T, exit int) string {
	t.Helper()
	return writeTool(t, fmt.Sprintf(`
while [ $# -gt 0 ]; do
  case "$1" in
    -i) inputs="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
IFS=','
for f in $inputs; do
  base=$(basename "$f")
  stem="${base%%.*}"
  mkdir -p "$out/$stem.corems"
  : > "$out/$stem.corems/$stem.hdf5"
  echo "mol,area" > "$out/$stem.corems/$stem.csv"
done
exit %d`, exit))
}

func runnerJob(t *testing.T, tool string) *BatchJob {
	t.Helper()
	job := testJob(t)
	job.Tool = tool
	return job
}

func TestRun_SucceedsWhenEveryInputProducesAResult(t *testing.T) {
	job := runnerJob(t, completeWriter(t, 0))
	runner := NewRunner(zaptest.NewLogger(t))

	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.True(t, outcome.Succeeded())
	require.Equal(t, StateSucceeded, outcome.State)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.True(t, outcome.Invoked)
	require.True(t, outcome.Verdict.Complete)
	require.Equal(t, 2, outcome.Verdict.ExpectedCount)
	require.Equal(t, 2, outcome.Verdict.ObservedCount)
	require.Len(t, outcome.Artifacts, 4, "two result dirs with one sidecar and one csv each")
}

func TestRun_CompleteLayoutOutranksNonZeroExit(t *testing.T) {
	job := runnerJob(t, completeWriter(t, 1))
	runner := NewRunner(zaptest.NewLogger(t))

	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, 1, outcome.RawExit())
	require.True(t, outcome.Verdict.Complete)
	require.Equal(t, StatusSuccess, outcome.Status,
		"observed artifacts outrank the tool's self-reported failure")
}

func TestRun_SynthesizesFailureWhenToolReportsFalseSuccess(t *testing.T) {
	// Writes a result for the first input only, yet exits 0.
	tool := writeTool(t, `
while [ $# -gt 0 ]; do
  case "$1" in
    -i) inputs="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
IFS=','
set -- $inputs
base=$(basename "$1")
stem="${base%.*}"
mkdir -p "$out/$stem.corems"
echo "mol,area" > "$out/$stem.corems/$stem.csv"
exit 0`)

	job := runnerJob(t, tool)
	runner := NewRunner(zaptest.NewLogger(t))

	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.False(t, outcome.Succeeded())
	require.Equal(t, StateFailed, outcome.State)
	require.Equal(t, 0, outcome.RawExit())
	require.Equal(t, StatusIncomplete, outcome.Status)
	require.Equal(t, 2, outcome.Verdict.ExpectedCount)
	require.Equal(t, 1, outcome.Verdict.ObservedCount)
	require.NotEmpty(t, outcome.Artifacts, "partial artifacts are still collected for diagnostics")
}

func TestRun_ResurfacesToolStatusOnIncompleteLayout(t *testing.T) {
	job := runnerJob(t, writeTool(t, `exit 137`))
	runner := NewRunner(zaptest.NewLogger(t))

	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.False(t, outcome.Succeeded())
	require.Equal(t, 137, outcome.Status)
	require.Equal(t, 0, outcome.Verdict.ObservedCount)
	require.Empty(t, outcome.Artifacts)
}

func TestRun_SkipProcessedDispatchesOnlyPendingInputs(t *testing.T) {
	seen := filepath.Join(t.TempDir(), "seen.txt")
	tool := writeTool(t, fmt.Sprintf(`
while [ $# -gt 0 ]; do
  case "$1" in
    -i) inputs="$2"; shift 2 ;;
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
echo "$inputs" > %s
IFS=','
for f in $inputs; do
  base=$(basename "$f")
  stem="${base%%.*}"
  mkdir -p "$out/$stem.corems"
  : > "$out/$stem.corems/$stem.hdf5"
  echo "mol,area" > "$out/$stem.corems/$stem.csv"
done
exit 0`, seen))

	job := runnerJob(t, tool)
	job.SkipProcessed = true

	// sample_a already has a complete result.
	writeFile(t, filepath.Join(job.OutputDir, "sample_a.corems", "sample_a.hdf5"), "x")
	writeFile(t, filepath.Join(job.OutputDir, "sample_a.corems", "report.csv"), "x")

	runner := NewRunner(zaptest.NewLogger(t))
	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, []string{job.Inputs[1]}, outcome.Dispatched)
	require.Equal(t, []string{job.Inputs[0]}, outcome.Skipped)

	raw, err := os.ReadFile(seen)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "sample_a.cdf", "already-processed input must not reach the tool")
	require.Contains(t, string(raw), "sample_b.cdf")

	require.True(t, outcome.Succeeded(), "verification counts skipped results as part of the layout")
	require.Equal(t, 2, outcome.Verdict.ObservedCount)
}

func TestRun_AllInputsProcessedSkipsInvocationEntirely(t *testing.T) {
	job := testJob(t)
	job.SkipProcessed = true
	// Tool resolution would fail if anything were dispatched.
	job.Tool = filepath.Join(t.TempDir(), "absent")

	for _, stem := range []string{"sample_a", "sample_b"} {
		writeFile(t, filepath.Join(job.OutputDir, stem+".corems", stem+".hdf5"), "x")
		writeFile(t, filepath.Join(job.OutputDir, stem+".corems", "report.csv"), "x")
	}

	runner := NewRunner(zaptest.NewLogger(t))
	outcome, err := runner.Run(context.Background(), job)
	require.NoError(t, err)

	require.False(t, outcome.Invoked)
	require.Nil(t, outcome.Result)
	require.Empty(t, outcome.Dispatched)
	require.Len(t, outcome.Skipped, 2)
	require.True(t, outcome.Succeeded())
	require.Equal(t, StatusSuccess, outcome.Status)
}

func TestRun_ValidationFailsBeforeAnyDispatch(t *testing.T) {
	job := testJob(t)
	job.Inputs = nil
	runner := NewRunner(zaptest.NewLogger(t))

	_, err := runner.Run(context.Background(), job)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestRun_InvocationErrorPropagates(t *testing.T) {
	job := runnerJob(t, filepath.Join(t.TempDir(), "absent"))
	runner := NewRunner(zaptest.NewLogger(t))

	_, err := runner.Run(context.Background(), job)
	require.Error(t, err)
	require.True(t, IsInvocationError(err))
}
