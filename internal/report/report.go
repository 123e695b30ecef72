// Package report renders one finished task run as a machine-readable JSON
// record: what was dispatched, what the tool reported, what verification
// observed, and what the final status was.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pingcap/errors"

	"msbatch/internal/core"
)

// ArtifactRecord is one collected output file.
type ArtifactRecord struct {
	Path string `json:"path"`
	Size int64  `json:"size_bytes"`
}

// RunReport is the written record of one task run. The report is documentary:
// nothing in the repository reads it back, so the schema favors people and
// downstream pipelines over round-tripping.
type RunReport struct {
	RunID       string `json:"run_id"`
	Variant     string `json:"variant"`
	Environment string `json:"environment"`
	Tool        string `json:"tool"`

	Args []string `json:"args"`

	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	InputCount int      `json:"input_count"`
	Dispatched []string `json:"dispatched"`
	Skipped    []string `json:"skipped,omitempty"`

	Invoked     bool   `json:"invoked"`
	RawExit     int    `json:"raw_exit_status"`
	FinalStatus int    `json:"final_status"`
	State       string `json:"state"`

	Complete        bool     `json:"complete"`
	ExpectedResults int      `json:"expected_results"`
	ObservedResults int      `json:"observed_results"`
	MissingArtifact []string `json:"missing_artifact,omitempty"`

	Artifacts []ArtifactRecord `json:"artifacts"`
}

// Stamp fixes a run's identity and start time before dispatch.
type Stamp struct {
	RunID   string
	Started time.Time
}

// Recorder assembles RunReports. The time and identity sources are fields so
// tests can pin them; production recorders use the wall clock and random
// UUIDs.
type Recorder struct {
	clock clock.Clock
	newID func() string
}

// NewRecorder returns a production Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		clock: clock.New(),
		newID: uuid.NewString,
	}
}

// NewRecorderAt returns a Recorder on the given clock and id source.
func NewRecorderAt(c clock.Clock, newID func() string) *Recorder {
	return &Recorder{clock: c, newID: newID}
}

// Begin captures a fresh run id and the start time.
func (r *Recorder) Begin() Stamp {
	return Stamp{
		RunID:   r.newID(),
		Started: r.clock.Now().UTC(),
	}
}

// Build assembles the report for a finished run.
func (r *Recorder) Build(stamp Stamp, job *core.BatchJob, outcome *core.TaskOutcome) *RunReport {
	finished := r.clock.Now().UTC()

	artifacts := make([]ArtifactRecord, len(outcome.Artifacts))
	for i, a := range outcome.Artifacts {
		artifacts[i] = ArtifactRecord{Path: a.Path, Size: a.Size}
	}

	return &RunReport{
		RunID:       stamp.RunID,
		Variant:     job.Variant,
		Environment: job.Environment,
		Tool:        job.Tool,
		Args:        job.Args(),

		StartedAt:       stamp.Started,
		FinishedAt:      finished,
		DurationSeconds: finished.Sub(stamp.Started).Seconds(),

		InputCount: len(job.Inputs),
		Dispatched: outcome.Dispatched,
		Skipped:    outcome.Skipped,

		Invoked:     outcome.Invoked,
		RawExit:     outcome.RawExit(),
		FinalStatus: outcome.Status,
		State:       string(outcome.State),

		Complete:        outcome.Verdict.Complete,
		ExpectedResults: outcome.Verdict.ExpectedCount,
		ObservedResults: outcome.Verdict.ObservedCount,
		MissingArtifact: outcome.Verdict.MissingArtifact,

		Artifacts: artifacts,
	}
}

// InsideDir reports whether path lies within dir. Used to refuse report
// paths inside the output directory: a report written there would show up in
// the artifact list of the run it describes.
func InsideDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Write stores the report at path atomically: the file is complete at its
// final name or absent, never truncated, even if the process dies mid-write.
func Write(path string, rep *RunReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Trace(err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Trace(err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Trace(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return errors.Trace(err)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Trace(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Trace(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Trace(err)
	}
	committed = true
	return nil
}
