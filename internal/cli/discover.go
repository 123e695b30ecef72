package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"msbatch/internal/core"
	"msbatch/internal/workflow"
)

// discoverOptions defines the flags of the `discover` command.
type discoverOptions struct {
	root *rootOptions

	variant string
	exts    string
}

// newDiscoverOptions creates new options for the `discover` command.
func newDiscoverOptions(root *rootOptions) *discoverOptions {
	return &discoverOptions{root: root}
}

// addFlags receives a *cobra.Command reference and binds the discover flags
// to it.
func (o *discoverOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.variant, "variant", "",
		"restrict to one workflow variant's input extensions")
	cmd.Flags().StringVar(&o.exts, "ext", "",
		"comma-separated extension override (e.g. \".raw,.mzML\")")
}

// extensions resolves which file extensions to look for: an explicit --ext
// list wins, then a variant's extensions, then the union over all variants.
func (o *discoverOptions) extensions() ([]string, error) {
	if s := strings.TrimSpace(o.exts); s != "" {
		var exts []string
		for _, e := range strings.Split(s, ",") {
			if e = strings.TrimSpace(e); e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
		return exts, nil
	}

	reg, err := workflow.NewRegistry()
	if err != nil {
		return nil, statusError(err)
	}
	if o.variant != "" {
		def, err := lookupVariant(reg, o.variant)
		if err != nil {
			return nil, exitWith(ExitInvalidInvocation, err)
		}
		return def.InputExts, nil
	}

	seen := make(map[string]bool)
	var exts []string
	for _, v := range reg.Variants() {
		def, err := reg.Get(v)
		if err != nil {
			return nil, statusError(err)
		}
		for _, e := range def.InputExts {
			if !seen[e] {
				seen[e] = true
				exts = append(exts, e)
			}
		}
	}
	sort.Strings(exts)
	return exts, nil
}

// run prints the discovered input paths, one per line, sorted.
func (o *discoverOptions) run(cmd *cobra.Command, dir string) error {
	exts, err := o.extensions()
	if err != nil {
		return statusError(err)
	}

	files, err := core.DiscoverInputs(dir, exts)
	if err != nil {
		return statusError(err)
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

// newCmdDiscover creates the `discover` command.
func newCmdDiscover(root *rootOptions) *cobra.Command {
	o := newDiscoverOptions(root)

	cmd := &cobra.Command{
		Use:   "discover <dir>",
		Short: "List the input files a directory holds for batch processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}

	o.addFlags(cmd)

	return cmd
}
