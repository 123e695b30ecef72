package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"msbatch/internal/core"
	"msbatch/internal/report"
	"msbatch/internal/workflow"
)

// jobFlagNames are the run flags that describe the batch job itself. When
// --config supplies a full manifest they are ignored, and the operator is
// told so.
var jobFlagNames = []string{
	"inputs", "input-dir", "output-dir", "corems-params",
	"calibration", "spectral-db", "scan-translator", "token",
	"cores", "image", "tool", "timeout", "skip-processed",
}

// runOptions defines the flags of one `run <variant>` command.
type runOptions struct {
	root    *rootOptions
	variant workflow.Variant

	inputs         string
	inputDir       string
	outputDir      string
	coremsParams   string
	calibration    string
	spectralDB     string
	scanTranslator string
	token          string
	cores          int
	image          string
	tool           string
	timeout        time.Duration
	skipProcessed  bool
	configPath     string
	reportPath     string
}

// newRunOptions creates new options for a `run <variant>` command.
func newRunOptions(root *rootOptions, v workflow.Variant) *runOptions {
	return &runOptions{root: root, variant: v}
}

// addFlags receives a *cobra.Command reference and binds the run flags to it.
func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.inputs, "inputs", "i", "", "comma-separated input file paths")
	cmd.Flags().StringVar(&o.inputDir, "input-dir", "", "directory scanned for input files when --inputs is empty")
	cmd.Flags().StringVarP(&o.outputDir, "output-dir", "o", "", "directory receiving one result directory per input")
	cmd.Flags().StringVarP(&o.coremsParams, "corems-params", "c", "", "CoreMS parameter TOML passed through to the tool")
	cmd.Flags().StringVar(&o.calibration, "calibration", "", "calibration reference file (FAMEs)")
	cmd.Flags().StringVar(&o.spectralDB, "spectral-db", "", "spectral database file (MSP)")
	cmd.Flags().StringVar(&o.scanTranslator, "scan-translator", "", "scan translator TOML")
	cmd.Flags().StringVar(&o.token, "token", "", "metabref token file")
	cmd.Flags().IntVarP(&o.cores, "cores", "j", 0, "tool worker processes (0 = variant default)")
	cmd.Flags().StringVar(&o.image, "image", "", "execution environment image, overriding the variant default")
	cmd.Flags().StringVar(&o.tool, "tool", "", "tool command (default "+workflow.DefaultTool+")")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "abort the tool invocation after this long (0 = no limit)")
	cmd.Flags().BoolVar(&o.skipProcessed, "skip-processed", true, "leave inputs with complete results out of the dispatch")
	cmd.Flags().StringVar(&o.configPath, "config", "", "run manifest TOML; when set, the job flags above are ignored")
	cmd.Flags().StringVar(&o.reportPath, "report", "", "write a JSON run report to this path")
}

// manifest resolves the run configuration: a --config manifest defines the
// whole job, otherwise the flags are assembled into one.
func (o *runOptions) manifest(cmd *cobra.Command) (*workflow.Manifest, error) {
	if o.configPath != "" {
		for _, name := range jobFlagNames {
			if cmd.Flags().Changed(name) {
				o.root.Logger().Warn("using manifest, flag ignored",
					zap.String("flag", "--"+name),
					zap.String("manifest", o.configPath))
			}
		}
		return workflow.LoadManifest(o.configPath)
	}

	var files []string
	for _, p := range strings.Split(o.inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			files = append(files, p)
		}
	}
	return &workflow.Manifest{
		FilePaths:           files,
		InputDir:            o.inputDir,
		OutputDirectory:     o.outputDir,
		CoremsTomlPath:      o.coremsParams,
		MSPFilePath:         o.spectralDB,
		ScanTranslatorPath:  o.scanTranslator,
		CalibrationFilePath: o.calibration,
		TokenPath:           o.token,
		Cores:               o.cores,
		SkipProcessed:       o.skipProcessed,
		Image:               o.image,
		ToolCommand:         o.tool,
		Timeout:             workflow.Duration(o.timeout),
	}, nil
}

// run executes one batch: build the job, dispatch the tool, verify the
// output layout, echo the captured tool output, and exit with the arbitrated
// status.
func (o *runOptions) run(cmd *cobra.Command) error {
	logger := o.root.Logger()

	reg, err := workflow.NewRegistry()
	if err != nil {
		return statusError(err)
	}
	def, err := reg.Get(o.variant)
	if err != nil {
		return statusError(err)
	}

	m, err := o.manifest(cmd)
	if err != nil {
		return statusError(err)
	}
	job, err := workflow.BuildJob(def, m)
	if err != nil {
		return statusError(err)
	}
	if o.reportPath != "" && report.InsideDir(o.reportPath, job.OutputDir) {
		return exitWith(ExitInvalidInvocation, errors.Errorf(
			"report path %s is inside the output directory and would be collected as an artifact",
			o.reportPath))
	}

	logger.Info("starting batch run",
		zap.String("variant", job.Variant),
		zap.String("environment", job.Environment),
		zap.Int("inputs", len(job.Inputs)),
		zap.Int("cores", job.Cores))
	logInputSizes(logger, job.Inputs)

	rec := report.NewRecorder()
	stamp := rec.Begin()

	outcome, err := core.NewRunner(logger).Run(cmd.Context(), job)
	if err != nil {
		return statusError(err)
	}

	if outcome.Result != nil {
		_, _ = cmd.OutOrStdout().Write(outcome.Result.Stdout)
		_, _ = cmd.ErrOrStderr().Write(outcome.Result.Stderr)
	}

	if o.reportPath != "" {
		if err := report.Write(o.reportPath, rec.Build(stamp, job, outcome)); err != nil {
			return exitWith(ExitConfigError, errors.Annotate(err, "writing run report"))
		}
		logger.Info("run report written", zap.String("path", o.reportPath))
	}

	printOutcome(cmd, outcome)
	if outcome.Status != ExitSuccess {
		return exitWith(outcome.Status, nil)
	}
	return nil
}

// printOutcome writes the one-line human verdict to stderr, leaving stdout
// to the tool's own output.
func printOutcome(cmd *cobra.Command, outcome *core.TaskOutcome) {
	var size uint64
	for _, a := range outcome.Artifacts {
		size += uint64(a.Size)
	}

	w := cmd.ErrOrStderr()
	v := outcome.Verdict
	if outcome.Succeeded() {
		fmt.Fprintln(w, color.GreenString("batch complete: %d/%d results, %d artifacts (%s)",
			v.ObservedCount, v.ExpectedCount, len(outcome.Artifacts), humanize.Bytes(size)))
		if outcome.RawExit() != 0 {
			fmt.Fprintln(w, color.HiYellowString("tool exited with status %d; complete results outrank it",
				outcome.RawExit()))
		}
		return
	}

	fmt.Fprintln(w, color.RedString("batch incomplete: %d/%d results", v.ObservedCount, v.ExpectedCount))
	for _, name := range v.MissingArtifact {
		fmt.Fprintln(w, color.RedString("  missing result artifact in %s", name))
	}
}

// logInputSizes records the batch's input footprint: per file at debug, the
// total at info.
func logInputSizes(logger *zap.Logger, inputs []string) {
	var total uint64
	for _, path := range inputs {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		total += uint64(info.Size())
		logger.Debug("batch input",
			zap.String("file", path),
			zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	logger.Info("batch input summary",
		zap.Int("files", len(inputs)),
		zap.String("total_size", humanize.Bytes(total)))
}

// newCmdRun creates the `run` command and its per-variant subcommands.
func newCmdRun(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch one batch to the workflow tool and verify its completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exitWith(ExitInvalidInvocation,
				errors.New("run needs a workflow variant: gcms, lipidomics, or metabolomics"))
		},
	}

	cmd.AddCommand(newCmdRunVariant(root, workflow.GCMS, "gcms",
		"Run the GC-MS metabolomics workflow over a batch"))
	cmd.AddCommand(newCmdRunVariant(root, workflow.Lipidomics, "lipidomics",
		"Run the LC-MS lipidomics workflow over a batch"))
	metab := newCmdRunVariant(root, workflow.LCMSMetab, "metabolomics",
		"Run the LC-MS metabolomics workflow over a batch")
	metab.Aliases = []string{string(workflow.LCMSMetab)}
	cmd.AddCommand(metab)

	return cmd
}

// newCmdRunVariant creates one `run <variant>` command.
func newCmdRunVariant(root *rootOptions, v workflow.Variant, use, short string) *cobra.Command {
	o := newRunOptions(root, v)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	o.addFlags(cmd)

	return cmd
}
