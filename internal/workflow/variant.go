// Package workflow defines the supported mass-spectrometry workflow variants
// and turns a variant definition plus a run manifest into a dispatchable
// batch job.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// Variant identifies one supported workflow.
type Variant string

const (
	GCMS       Variant = "gcms"
	Lipidomics Variant = "lipidomics"
	LCMSMetab  Variant = "lcms-metab"
)

// Reference roles shared across variants. The role names appear in
// diagnostics and manifest documentation.
const (
	RoleCalibration    = "calibration"
	RoleSpectralDB     = "spectral-db"
	RoleScanTranslator = "scan-translator"
	RoleToken          = "token"
)

// ReferenceSpec declares one reference-file slot of a variant: which role it
// fills, the tool flag it is passed under, and whether a run can proceed
// without it.
type ReferenceSpec struct {
	Role     string
	Flag     string
	Required bool
}

// Definition is the static description of one workflow variant. Definitions
// are data, not behavior: adding a variant means adding a table entry, never
// touching dispatch or verification logic.
type Definition struct {
	Variant      Variant
	Description  string
	Subcommand   string
	DefaultImage string
	DefaultCores int
	InputExts    []string
	References   []ReferenceSpec
}

// DefaultTool is the wrapped analysis tool invoked for every variant.
const DefaultTool = "metams"

// ArtifactExt marks the tabular result files every variant exports; its
// presence in a result directory is what completion verification checks for.
const ArtifactExt = ".csv"

func defaultDefinitions() []Definition {
	return []Definition{
		{
			Variant:      GCMS,
			Description:  "GC-MS metabolomics batch processing",
			Subcommand:   "run-gcms-workflow",
			DefaultImage: "microbiomedata/metams:3.3.1",
			DefaultCores: 4,
			InputExts:    []string{".cdf"},
			References: []ReferenceSpec{
				{Role: RoleCalibration, Flag: "-e", Required: true},
				{Role: RoleScanTranslator, Flag: "-s", Required: false},
			},
		},
		{
			Variant:      Lipidomics,
			Description:  "LC-MS lipidomics batch processing",
			Subcommand:   "run-lipidomics-workflow",
			DefaultImage: "microbiomedata/metams-lipidomics:2.2.3",
			DefaultCores: 1,
			InputExts:    []string{".raw", ".mzml"},
			References: []ReferenceSpec{
				{Role: RoleToken, Flag: "-t", Required: true},
				{Role: RoleScanTranslator, Flag: "-s", Required: false},
			},
		},
		{
			Variant:      LCMSMetab,
			Description:  "LC-MS metabolomics batch processing",
			Subcommand:   "run-lcms-metab-workflow",
			DefaultImage: "microbiomedata/metams-lcms-metab:1.0.0",
			DefaultCores: 1,
			InputExts:    []string{".raw", ".mzml"},
			References: []ReferenceSpec{
				{Role: RoleSpectralDB, Flag: "-d", Required: true},
				{Role: RoleScanTranslator, Flag: "-s", Required: true},
			},
		},
	}
}

// Registry is the explicit variant table supplied at startup. All lookups go
// through it; nothing else in the repository hard-codes an environment
// identifier.
type Registry struct {
	defs map[Variant]Definition
}

// NewRegistry builds the registry from the built-in definitions.
func NewRegistry() (*Registry, error) {
	return NewRegistryFrom(defaultDefinitions())
}

// NewRegistryFrom builds a registry from an explicit definition table,
// validating each entry. Construction fails loudly on a malformed table
// rather than letting a bad default surface mid-run.
func NewRegistryFrom(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Variant]Definition)}
	for _, def := range defs {
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		r.defs[def.Variant] = def
	}
	return r, nil
}

// Get returns the definition for the given variant.
func (r *Registry) Get(v Variant) (Definition, error) {
	def, ok := r.defs[v]
	if !ok {
		return Definition{}, configf("unknown workflow variant %q (supported: %s)",
			v, strings.Join(variantNames(r.Variants()), ", "))
	}
	return def, nil
}

// Variants returns the registered variants, sorted.
func (r *Registry) Variants() []Variant {
	out := make([]Variant, 0, len(r.defs))
	for v := range r.defs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func variantNames(vs []Variant) []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = string(v)
	}
	return names
}

func validateDefinition(def Definition) error {
	if def.Subcommand == "" {
		return configf("variant %s has no tool subcommand", def.Variant)
	}
	if len(def.InputExts) == 0 {
		return configf("variant %s accepts no input extensions", def.Variant)
	}
	if def.DefaultCores < 1 {
		return configf("variant %s has non-positive default worker count", def.Variant)
	}
	tag, err := imageTag(def.DefaultImage)
	if err != nil {
		return err
	}
	if _, err := semver.NewVersion(tag); err != nil {
		return configf("variant %s default image %q has a non-semver tag: %v",
			def.Variant, def.DefaultImage, err)
	}
	return nil
}

// imageTag splits a container image reference and returns its tag.
func imageTag(image string) (string, error) {
	idx := strings.LastIndex(image, ":")
	if idx < 0 || idx == len(image)-1 {
		return "", configf("image reference %q has no version tag", image)
	}
	return image[idx+1:], nil
}

// ResolveEnvironment returns the execution environment identifier for one
// run. Exactly two branches: an override given with the run wins, otherwise
// the variant's default applies. The identifier is passed through to logs,
// reports, and the surrounding workflow engine; this layer never pulls or
// inspects the image itself.
func ResolveEnvironment(def Definition, override string) (string, error) {
	if o := strings.TrimSpace(override); o != "" {
		if strings.ContainsAny(o, " \t") {
			return "", configf("invalid image reference %q", override)
		}
		return o, nil
	}
	return def.DefaultImage, nil
}

// ConfigError reports unusable workflow configuration: a malformed manifest,
// an unknown variant, or a bad environment reference.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func configf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a workflow configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
