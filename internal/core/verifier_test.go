package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeResultDir creates out/<name>/ with the given files inside.
func makeResultDir(t *testing.T, out, name string, files ...string) {
	t.Helper()
	dir := filepath.Join(out, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		writeFile(t, filepath.Join(dir, f), "x")
	}
}

func TestReadOutputLayout_MissingDirectoryIsEmpty(t *testing.T) {
	layout, err := ReadOutputLayout(filepath.Join(t.TempDir(), "absent"), ".csv")
	require.NoError(t, err)
	require.Empty(t, layout.Subdirs)
}

func TestReadOutputLayout_IgnoresTopLevelFiles(t *testing.T) {
	out := t.TempDir()
	writeFile(t, filepath.Join(out, "stray.csv"), "x")
	makeResultDir(t, out, "sample_a.corems", "sample_a.csv")

	layout, err := ReadOutputLayout(out, ".csv")
	require.NoError(t, err)
	require.Len(t, layout.Subdirs, 1)
	require.Equal(t, "sample_a.corems", layout.Subdirs[0].Name)
}

func TestReadOutputLayout_DetectsArtifactPresence(t *testing.T) {
	out := t.TempDir()
	makeResultDir(t, out, "sample_a.corems", "sample_a.hdf5", "sample_a.csv")
	makeResultDir(t, out, "sample_b.corems", "sample_b.hdf5")

	layout, err := ReadOutputLayout(out, ".csv")
	require.NoError(t, err)
	require.Equal(t, []SubdirState{
		{Name: "sample_a.corems", HasArtifact: true},
		{Name: "sample_b.corems", HasArtifact: false},
	}, layout.Subdirs)
}

func TestReadOutputLayout_MatchesExtensionCaseInsensitively(t *testing.T) {
	out := t.TempDir()
	makeResultDir(t, out, "sample_a.corems", "REPORT.CSV")

	layout, err := ReadOutputLayout(out, ".csv")
	require.NoError(t, err)
	require.True(t, layout.Subdirs[0].HasArtifact)
}

func TestReadOutputLayout_SortsSubdirsByName(t *testing.T) {
	out := t.TempDir()
	makeResultDir(t, out, "zz.corems", "r.csv")
	makeResultDir(t, out, "aa.corems", "r.csv")
	makeResultDir(t, out, "mm.corems", "r.csv")

	layout, err := ReadOutputLayout(out, ".csv")
	require.NoError(t, err)
	require.Equal(t, "aa.corems", layout.Subdirs[0].Name)
	require.Equal(t, "mm.corems", layout.Subdirs[1].Name)
	require.Equal(t, "zz.corems", layout.Subdirs[2].Name)
}

func TestVerify_CompleteWhenCountsMatchAndArtifactsPresent(t *testing.T) {
	layout := OutputLayout{Subdirs: []SubdirState{
		{Name: "a.corems", HasArtifact: true},
		{Name: "b.corems", HasArtifact: true},
		{Name: "c.corems", HasArtifact: true},
	}}

	verdict := Verify(3, layout)
	require.True(t, verdict.Complete)
	require.Equal(t, 3, verdict.ExpectedCount)
	require.Equal(t, 3, verdict.ObservedCount)
	require.Empty(t, verdict.MissingArtifact)
}

func TestVerify_IncompleteOnCountMismatch(t *testing.T) {
	layout := OutputLayout{Subdirs: []SubdirState{
		{Name: "a.corems", HasArtifact: true},
		{Name: "b.corems", HasArtifact: true},
	}}

	verdict := Verify(3, layout)
	require.False(t, verdict.Complete)
	require.Equal(t, 3, verdict.ExpectedCount)
	require.Equal(t, 2, verdict.ObservedCount)
}

func TestVerify_IncompleteWhenSubdirLacksArtifact(t *testing.T) {
	layout := OutputLayout{Subdirs: []SubdirState{
		{Name: "a.corems", HasArtifact: true},
		{Name: "b.corems", HasArtifact: false},
		{Name: "c.corems", HasArtifact: false},
	}}

	verdict := Verify(3, layout)
	require.False(t, verdict.Complete)
	require.Equal(t, []string{"b.corems", "c.corems"}, verdict.MissingArtifact)
}

func TestVerify_ExtraSubdirsAreAMismatch(t *testing.T) {
	layout := OutputLayout{Subdirs: []SubdirState{
		{Name: "a.corems", HasArtifact: true},
		{Name: "b.corems", HasArtifact: true},
	}}

	verdict := Verify(1, layout)
	require.False(t, verdict.Complete)
}

func TestVerify_ZeroExpectedCompleteOnlyWhenNothingObserved(t *testing.T) {
	require.True(t, Verify(0, OutputLayout{}).Complete)

	layout := OutputLayout{Subdirs: []SubdirState{{Name: "a.corems", HasArtifact: true}}}
	require.False(t, Verify(0, layout).Complete)
}
