package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

// templateFields is the subset of manifest keys the template tests care
// about.
type templateFields struct {
	Cores         int    `toml:"cores"`
	SkipProcessed bool   `toml:"skip_processed"`
	Image         string `toml:"image"`
	ToolCommand   string `toml:"tool_command"`
}

func TestTemplate_StdoutCarriesVariantDefaults(t *testing.T) {
	code, stdout, _ := runMain(t, "template", "gcms")

	require.Equal(t, ExitSuccess, code)

	var m templateFields
	_, err := toml.Decode(stdout, &m)
	require.NoError(t, err)
	require.Equal(t, 4, m.Cores)
	require.True(t, m.SkipProcessed)
	require.Equal(t, "microbiomedata/metams:3.3.1", m.Image)
	require.Equal(t, "metams", m.ToolCommand)
}

func TestTemplate_OutputFileForcesTomlSuffix(t *testing.T) {
	target := filepath.Join(t.TempDir(), "manifest.txt")

	code, stdout, _ := runMain(t, "template", "lipidomics", "-o", target)

	require.Equal(t, ExitSuccess, code)
	written := strings.TrimSpace(stdout)
	require.True(t, strings.HasSuffix(written, ".toml"), "got %q", written)

	var m templateFields
	_, err := toml.DecodeFile(written, &m)
	require.NoError(t, err)
	require.Equal(t, 1, m.Cores)
	require.Equal(t, "microbiomedata/metams-lipidomics:2.2.3", m.Image)
}

func TestTemplate_MetabolomicsNameResolves(t *testing.T) {
	code, stdout, _ := runMain(t, "template", "metabolomics")

	require.Equal(t, ExitSuccess, code)

	var m templateFields
	_, err := toml.Decode(stdout, &m)
	require.NoError(t, err)
	require.Equal(t, "microbiomedata/metams-lcms-metab:1.0.0", m.Image)
}

func TestTemplate_RoundTripsThroughLoadManifest(t *testing.T) {
	target := filepath.Join(t.TempDir(), "starter")

	code, stdout, _ := runMain(t, "template", "gcms", "-o", target)
	require.Equal(t, ExitSuccess, code)

	// The written starter must load back through the same strict decoder
	// that run --config uses.
	written := strings.TrimSpace(stdout)
	_, err := os.Stat(written)
	require.NoError(t, err)

	codeRun, _, stderr := runMain(t, "run", "gcms", "--config", written)
	require.Equal(t, ExitInvalidInvocation, codeRun, "starter has no inputs yet")
	require.Contains(t, stderr, "file_paths or input_dir")
}

func TestTemplate_UnknownVariantIsInvalidInvocation(t *testing.T) {
	code, _, stderr := runMain(t, "template", "proteomics")

	require.Equal(t, ExitInvalidInvocation, code)
	require.Contains(t, stderr, "unknown workflow variant")
}
