package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"msbatch/internal/core"
	"msbatch/internal/workflow"
)

// verifyOptions defines the flags of the `verify` command.
type verifyOptions struct {
	root *rootOptions

	outputDir   string
	expect      int
	artifactExt string
}

// newVerifyOptions creates new options for the `verify` command.
func newVerifyOptions(root *rootOptions) *verifyOptions {
	return &verifyOptions{root: root}
}

// addFlags receives a *cobra.Command reference and binds the verify flags
// to it.
func (o *verifyOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.outputDir, "output-dir", "o", "", "output directory to inspect")
	cmd.Flags().IntVar(&o.expect, "expect", 0, "number of input files the batch was dispatched with")
	cmd.Flags().StringVar(&o.artifactExt, "artifact-ext", workflow.ArtifactExt,
		"file extension marking a result directory complete")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("expect")
}

// run re-verifies an output directory without invoking anything. Reading the
// same unchanged directory twice yields the same verdict.
func (o *verifyOptions) run(cmd *cobra.Command) error {
	if o.expect < 0 {
		return exitWith(ExitInvalidInvocation, errors.Errorf("--expect must be non-negative (got %d)", o.expect))
	}

	layout, err := core.ReadOutputLayout(o.outputDir, o.artifactExt)
	if err != nil {
		return statusError(err)
	}
	verdict := core.Verify(o.expect, layout)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "expected %d result directories, observed %d\n",
		verdict.ExpectedCount, verdict.ObservedCount)
	for _, name := range verdict.MissingArtifact {
		fmt.Fprintf(out, "missing %s artifact in %s\n", o.artifactExt, name)
	}

	if !verdict.Complete {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("batch incomplete"))
		return exitWith(ExitBatchIncomplete, nil)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString("batch complete"))
	return nil
}

// newCmdVerify creates the `verify` command.
func newCmdVerify(root *rootOptions) *cobra.Command {
	o := newVerifyOptions(root)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-verify an output directory against an expected input count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	o.addFlags(cmd)

	return cmd
}
