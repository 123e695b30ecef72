package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"msbatch/internal/core"
)

// Duration is a time.Duration that reads and writes as a TOML string
// ("90m", "2h").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Trace(err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Manifest is the run configuration for one batch, loaded from a TOML file
// or assembled from command-line flags. All keys are optional at the TOML
// level; what a given variant actually requires is enforced when the job is
// validated.
type Manifest struct {
	// FilePaths lists explicit input files. When set, InputDir is ignored.
	FilePaths []string `toml:"file_paths"`

	// InputDir is scanned for input files with the variant's extensions when
	// FilePaths is empty.
	InputDir string `toml:"input_dir"`

	// OutputDirectory receives one result directory per input.
	OutputDirectory string `toml:"output_directory"`

	// CoremsTomlPath is the tool's own parameter file, passed through.
	CoremsTomlPath string `toml:"corems_toml_path"`

	// Reference files; which ones a variant needs is declared per variant.
	MSPFilePath         string `toml:"msp_file_path"`
	ScanTranslatorPath  string `toml:"scan_translator_path"`
	CalibrationFilePath string `toml:"calibration_file_path"`
	TokenPath           string `toml:"token_path"`

	// Cores is the tool worker-count hint. Zero means the variant default.
	Cores int `toml:"cores"`

	// SkipProcessed leaves inputs with complete results out of the dispatch.
	SkipProcessed bool `toml:"skip_processed"`

	// Image overrides the variant's default execution environment.
	Image string `toml:"image"`

	// ToolCommand overrides the tool binary name.
	ToolCommand string `toml:"tool_command"`

	// Timeout bounds the tool invocation. Zero means no limit.
	Timeout Duration `toml:"timeout"`
}

// LoadManifest decodes a manifest strictly: any key in the file that does not
// map onto a Manifest field is an error, so a typoed key fails the run
// instead of silently running with defaults.
func LoadManifest(path string) (*Manifest, error) {
	m := new(Manifest)
	meta, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, configf("cannot load manifest %s: %v", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, configf("manifest %s contains unknown keys: %s",
			path, strings.Join(keys, ", "))
	}
	return m, nil
}

// Default returns a starter manifest for the variant with defaults filled in
// and path keys left empty for the operator.
func Default(def Definition) *Manifest {
	return &Manifest{
		Cores:         def.DefaultCores,
		SkipProcessed: true,
		Image:         def.DefaultImage,
		ToolCommand:   DefaultTool,
	}
}

// WriteTemplate writes a starter manifest for the variant, forcing a .toml
// suffix on the target name the way the tool's own template dumpers do.
// Returns the path actually written.
func WriteTemplate(path string, def Definition) (string, error) {
	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".toml"
	f, err := os.Create(target)
	if err != nil {
		return "", errors.Annotatef(err, "cannot create template %s", target)
	}
	if err := toml.NewEncoder(f).Encode(Default(def)); err != nil {
		f.Close()
		return "", errors.Annotatef(err, "encoding template %s", target)
	}
	if err := f.Close(); err != nil {
		return "", errors.Trace(err)
	}
	return target, nil
}

// BuildJob combines a variant definition and a manifest into a batch job.
// Explicit file_paths win over input_dir discovery; unset cores, image, and
// tool command fall back to the variant defaults. The job is assembled here
// and validated by the runner, so a manifest that is structurally fine but
// points at missing files still fails before dispatch.
func BuildJob(def Definition, m *Manifest) (*core.BatchJob, error) {
	inputs := m.FilePaths
	if len(inputs) == 0 {
		if strings.TrimSpace(m.InputDir) == "" {
			return nil, &core.ValidationError{
				Message: fmt.Sprintf("variant %s needs file_paths or input_dir", def.Variant),
			}
		}
		var err error
		inputs, err = core.DiscoverInputs(m.InputDir, def.InputExts)
		if err != nil {
			return nil, err
		}
	}

	environment, err := ResolveEnvironment(def, m.Image)
	if err != nil {
		return nil, err
	}

	tool := m.ToolCommand
	if strings.TrimSpace(tool) == "" {
		tool = DefaultTool
	}
	cores := m.Cores
	if cores == 0 {
		cores = def.DefaultCores
	}

	refs := make([]core.Reference, 0, len(def.References))
	for _, spec := range def.References {
		refs = append(refs, core.Reference{
			Role:     spec.Role,
			Flag:     spec.Flag,
			Path:     m.referencePath(spec.Role),
			Required: spec.Required,
		})
	}

	return &core.BatchJob{
		Variant:       string(def.Variant),
		Tool:          tool,
		Subcommand:    def.Subcommand,
		Inputs:        inputs,
		ConfigPath:    m.CoremsTomlPath,
		References:    refs,
		Cores:         cores,
		OutputDir:     m.OutputDirectory,
		ArtifactExt:   ArtifactExt,
		AllowedExts:   def.InputExts,
		Environment:   environment,
		SkipProcessed: m.SkipProcessed,
		Timeout:       time.Duration(m.Timeout),
	}, nil
}

func (m *Manifest) referencePath(role string) string {
	switch role {
	case RoleCalibration:
		return m.CalibrationFilePath
	case RoleSpectralDB:
		return m.MSPFilePath
	case RoleScanTranslator:
		return m.ScanTranslatorPath
	case RoleToken:
		return m.TokenPath
	default:
		return ""
	}
}
