// Package cli wires the batch dispatch and completion-verification layer
// into the msbatch command tree.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"msbatch/internal/workflow"
)

// rootOptions holds the flags and shared state of the root command.
type rootOptions struct {
	logLevel string

	logger *zap.Logger
}

// newRootOptions creates new options for the root command.
func newRootOptions() *rootOptions {
	return &rootOptions{}
}

// addFlags receives a *cobra.Command reference and binds the global flags
// to it.
func (o *rootOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "info",
		"log level (debug|info|warn|error)")
}

// setupLogger builds the process logger: JSON-encoded structured logs at the
// requested level, written to stderr so they never mix into the tool's
// captured stdout.
func (o *rootOptions) setupLogger(w io.Writer) error {
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return exitWith(ExitInvalidInvocation,
			errors.Errorf("invalid --log-level %q (expected debug|info|warn|error)", o.logLevel))
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	o.logger = zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level))
	return nil
}

// Logger returns the process logger, or a no-op logger before setup.
func (o *rootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

// NewCmdRoot creates the msbatch command tree.
func NewCmdRoot() *cobra.Command {
	o := newRootOptions()

	cmd := &cobra.Command{
		Use:   "msbatch",
		Short: "Dispatch mass-spectrometry batches and verify their completion",
		Long: `msbatch runs the wrapped chromatography/mass-spectrometry tool over a
batch of input files and decides whether the batch actually completed,
by inspecting the output directory rather than trusting the tool's
self-reported exit status.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setupLogger(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}

	o.addFlags(cmd)

	cmd.AddCommand(newCmdRun(o))
	cmd.AddCommand(newCmdVerify(o))
	cmd.AddCommand(newCmdDiscover(o))
	cmd.AddCommand(newCmdTemplate())
	cmd.AddCommand(newCmdVersion())

	return cmd
}

// Main executes the msbatch command line and returns the process exit
// status. All output goes through the given writers, which makes the whole
// tree black-box testable.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewCmdRoot()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if stderrors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, color.RedString("error: %v", ee.err))
		}
		return ee.code
	}

	// Anything cobra returns unwrapped is a usage problem: an unknown
	// command or flag, a missing required flag, a bad argument count.
	fmt.Fprintln(stderr, color.RedString("error: %v", err))
	return ExitInvalidInvocation
}

// lookupVariant resolves an operator-facing variant name. The LC-MS
// metabolomics variant answers to both its registry id and the name its run
// subcommand uses.
func lookupVariant(reg *workflow.Registry, name string) (workflow.Definition, error) {
	id := workflow.Variant(strings.ToLower(strings.TrimSpace(name)))
	if id == "metabolomics" {
		id = workflow.LCMSMetab
	}
	return reg.Get(id)
}
