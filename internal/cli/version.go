package cli

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

// Version is the msbatch release version. The workflow variants pin their
// default container image tags independently of it.
const Version = "3.3.1"

// newCmdVersion creates the `version` command.
func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the msbatch version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := semver.NewVersion(Version)
			if err != nil {
				return statusError(errors.Annotatef(err, "release version %q is not semver", Version))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "msbatch version %s\n", v)
			return nil
		},
	}
}
