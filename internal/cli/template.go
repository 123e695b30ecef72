package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"msbatch/internal/workflow"
)

// templateOptions defines the flags of the `template` command.
type templateOptions struct {
	output string
}

// run writes a starter manifest for the variant, to a file when --output is
// set and to stdout otherwise.
func (o *templateOptions) run(cmd *cobra.Command, name string) error {
	reg, err := workflow.NewRegistry()
	if err != nil {
		return statusError(err)
	}
	def, err := lookupVariant(reg, name)
	if err != nil {
		return exitWith(ExitInvalidInvocation, err)
	}

	if o.output == "" {
		if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(workflow.Default(def)); err != nil {
			return statusError(errors.Annotate(err, "encoding manifest template"))
		}
		return nil
	}

	target, err := workflow.WriteTemplate(o.output, def)
	if err != nil {
		return statusError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), target)
	return nil
}

// newCmdTemplate creates the `template` command.
func newCmdTemplate() *cobra.Command {
	o := &templateOptions{}

	cmd := &cobra.Command{
		Use:   "template <variant>",
		Short: "Write a starter run manifest for a workflow variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", "",
		"write the manifest here instead of stdout (.toml suffix enforced)")

	return cmd
}
