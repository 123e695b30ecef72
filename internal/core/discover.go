package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result directory naming convention shared by all workflow variants: input
// <stem>.<ext> produces <stem>.corems/ containing <stem>.hdf5 plus the
// tabular artifacts.
const (
	resultDirSuffix = ".corems"
	sidecarExt      = ".hdf5"
)

// DiscoverInputs lists the files directly inside dir that carry one of the
// given extensions, matched without case sensitivity, sorted
// lexicographically. The scan is not recursive; staging directories are flat.
// An empty result is not an error, a missing directory is.
func DiscoverInputs(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, validationf("input directory not found: %s", dir)
		}
		return nil, validationf("cannot read input directory %s: %v", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !extAllowed(entry.Name(), exts) {
			continue
		}
		files = append(files, filepath.ToSlash(filepath.Join(dir, entry.Name())))
	}

	sort.Strings(files)
	return files, nil
}

// ResultDir returns the output subdirectory the tool writes for one input
// file: the input's stem plus the shared result suffix, under outputDir.
func ResultDir(outputDir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+resultDirSuffix)
}

// PartitionProcessed splits inputs into those still needing processing and
// those whose results under outputDir are already complete. A result counts
// as complete when its directory holds the input's sidecar data file and at
// least one artifact with artifactExt; anything less, including an unreadable
// directory, queues the input for processing again.
func PartitionProcessed(inputs []string, outputDir, artifactExt string) (pending, done []string) {
	for _, input := range inputs {
		if resultComplete(input, outputDir, artifactExt) {
			done = append(done, input)
		} else {
			pending = append(pending, input)
		}
	}
	return pending, done
}

func resultComplete(input, outputDir, artifactExt string) bool {
	dir := ResultDir(outputDir, input)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if _, err := os.Stat(filepath.Join(dir, stem+sidecarExt)); err != nil {
		return false
	}

	has, err := hasArtifact(dir, artifactExt)
	return err == nil && has
}
