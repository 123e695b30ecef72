package core

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pingcap/errors"
)

// Artifact is one file produced by a batch run.
type Artifact struct {
	// Path is the file location, with forward slashes for stable listings.
	Path string

	// Size is the file size in bytes at collection time.
	Size int64
}

// CollectArtifacts enumerates every file under the output directory
// recursively and returns them sorted by path. Existence is the only
// criterion: nothing is filtered or parsed. Collection happens on failed runs
// too, so diagnostics can show what the tool did manage to write. A missing
// output directory yields an empty list.
//
// Do not rely on filesystem ordering; the sorted result is the contract.
func CollectArtifacts(outputDir string) ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		artifacts = append(artifacts, Artifact{
			Path: filepath.ToSlash(path),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Annotatef(err, "collecting artifacts from %s", outputDir)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
	return artifacts, nil
}
