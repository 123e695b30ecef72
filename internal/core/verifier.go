package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pingcap/errors"
)

// SubdirState records one top-level result directory and whether it holds at
// least one artifact of the expected type.
type SubdirState struct {
	Name        string
	HasArtifact bool
}

// OutputLayout is the observed state of the output directory at verification
// time: one entry per immediate child directory, sorted by name. It is read
// from the filesystem once per task run and never persisted.
type OutputLayout struct {
	Subdirs []SubdirState
}

// VerificationVerdict is the filesystem-derived judgment of whether every
// input produced a complete result. The judgment trusts directory contents
// over the tool's self-reported exit status.
type VerificationVerdict struct {
	// Complete is true if and only if the observed subdirectory count equals
	// the expected input count and every subdirectory holds at least one
	// expected artifact.
	Complete bool

	// ExpectedCount is the number of input files in the batch.
	ExpectedCount int

	// ObservedCount is the number of top-level result directories found.
	ObservedCount int

	// MissingArtifact lists the result directories that exist but hold no
	// expected artifact, sorted by name.
	MissingArtifact []string
}

// ReadOutputLayout enumerates the immediate child directories of dir and
// checks each for at least one file carrying artifactExt (matched without
// case sensitivity). Plain files at the top level are ignored. A missing
// output directory yields an empty layout rather than an error: the tool
// producing nothing is a verification outcome, not a fault of this layer.
func ReadOutputLayout(dir, artifactExt string) (OutputLayout, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return OutputLayout{}, nil
		}
		return OutputLayout{}, errors.Annotatef(err, "cannot read output directory %s", dir)
	}

	var layout OutputLayout
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		has, err := hasArtifact(filepath.Join(dir, entry.Name()), artifactExt)
		if err != nil {
			return OutputLayout{}, err
		}
		layout.Subdirs = append(layout.Subdirs, SubdirState{
			Name:        entry.Name(),
			HasArtifact: has,
		})
	}

	sort.Slice(layout.Subdirs, func(i, j int) bool {
		return layout.Subdirs[i].Name < layout.Subdirs[j].Name
	})
	return layout, nil
}

// hasArtifact reports whether subdir directly contains at least one file with
// the given extension. The scan stops at the first match; only presence
// matters, never contents.
func hasArtifact(subdir, ext string) (bool, error) {
	entries, err := os.ReadDir(subdir)
	if err != nil {
		return false, errors.Annotatef(err, "cannot read result directory %s", subdir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			return true, nil
		}
	}
	return false, nil
}

// Verify computes the verdict from the expected input count and an observed
// layout. It is a pure function of its arguments and is total: zero expected
// inputs verify as complete exactly when zero result directories exist.
func Verify(expectedCount int, layout OutputLayout) VerificationVerdict {
	verdict := VerificationVerdict{
		ExpectedCount: expectedCount,
		ObservedCount: len(layout.Subdirs),
	}
	for _, sub := range layout.Subdirs {
		if !sub.HasArtifact {
			verdict.MissingArtifact = append(verdict.MissingArtifact, sub.Name)
		}
	}
	verdict.Complete = verdict.ObservedCount == verdict.ExpectedCount &&
		len(verdict.MissingArtifact) == 0
	return verdict
}
