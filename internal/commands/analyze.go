package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhull/apiport/pkg/client"
	"github.com/simonhull/apiport/pkg/config"
	"github.com/simonhull/apiport/pkg/model"
	"github.com/simonhull/apiport/pkg/output"
	"github.com/simonhull/apiport/pkg/progress"
	"github.com/spf13/cobra"
)

// analyzeSettings holds the analyze flags.
type analyzeSettings struct {
	files       []string
	targets     []string
	formats     []string
	suppress    []string
	out         string
	description string
	ignoreFile  string
	targetMap   string
	nonPortable bool
	breaking    bool
	retargeting bool
	dumpRequest bool
}

var analyzeFlags analyzeSettings

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze assemblies for portability",
	Long: `Reads the given assemblies and directories, resolves the platform APIs they
use and writes a portability report for the requested targets.

Example:
  apiport analyze -f ./bin
  apiport analyze -f App.dll -t ".NET Core" -t "Windows,Version=v8.1" -r html
  apiport analyze ./bin -b -u -o report`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringArrayVarP(&analyzeFlags.files, "file", "f", nil, "Assembly file or directory to analyze (repeatable)")
	f.StringArrayVarP(&analyzeFlags.targets, "target", "t", nil, "Target framework or alias (repeatable, default from config)")
	f.StringArrayVarP(&analyzeFlags.formats, "result-format", "r", nil, "Report format: markdown, html or json (repeatable)")
	f.StringVarP(&analyzeFlags.out, "out", "o", "", "Report file name, existing files are overwritten")
	f.StringVarP(&analyzeFlags.description, "description", "d", "", "Description of the analyzed application")
	f.BoolVarP(&analyzeFlags.nonPortable, "show-non-portable-apis", "p", false, "Report APIs missing on the targets")
	f.BoolVarP(&analyzeFlags.breaking, "show-breaking-changes", "b", false, "Report breaking changes")
	f.BoolVarP(&analyzeFlags.retargeting, "show-retargetting-issues", "u", false, "Report retargeting issues (implies -b)")
	f.StringVarP(&analyzeFlags.ignoreFile, "ignore-assembly-file", "i", "", "YAML file of assemblies to skip for breaking changes")
	f.StringArrayVarP(&analyzeFlags.suppress, "suppress-breaking-change", "s", nil, "Breaking change id to suppress (repeatable)")
	f.StringVar(&analyzeFlags.targetMap, "target-map", "", "YAML file of target aliases")
	f.BoolVar(&analyzeFlags.dumpRequest, "dump-request", false, "Dump the analysis request to stderr")

	RootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadSettings()
	if err != nil {
		output.Error(err.Error())
		return err
	}

	reporter := progress.NewReporter(os.Stderr, log)
	stack, err := client.NewStack(cfg, analyzeFlags.targetMap, log, reporter)
	if err != nil {
		output.Error(err.Error())
		return err
	}

	opts := analyzeFlags.options(cfg, args, cmd.Flags().Changed("out"))
	if len(opts.Inputs) == 0 {
		err := errors.New("no input given, pass files or directories with -f or as arguments")
		output.Error(err.Error())
		return err
	}

	output.Step(fmt.Sprintf("Analyzing %s", strings.Join(opts.Inputs, ", ")))
	result, err := stack.Client.Analyze(cmd.Context(), opts)
	if err != nil {
		var tooLarge *client.RequestTooLargeError
		if errors.As(err, &tooLarge) {
			output.Error(fmt.Sprintf("Inputs total %s, the limit is %s. Raise analysis.max_request_bytes or analyze fewer files.",
				formatBytes(tooLarge.Size), formatBytes(tooLarge.Limit)))
			return err
		}
		output.Error(fmt.Sprintf("Analysis failed: %v", err))
		return err
	}

	printSummary(result)
	return nil
}

// options merges the flags over cfg. An explicit --out overwrites existing
// reports.
func (s analyzeSettings) options(cfg *config.Config, args []string, outGiven bool) client.Options {
	inputs := make([]string, 0, len(s.files)+len(args))
	inputs = append(inputs, s.files...)
	inputs = append(inputs, args...)

	var flags model.RequestFlags
	if s.nonPortable {
		flags |= model.ShowNonPortableApis
	}
	if s.breaking {
		flags |= model.ShowBreakingChanges
	}
	if s.retargeting {
		flags |= model.ShowRetargettingIssues
	}

	opts := client.Options{
		ApplicationName:         s.description,
		Description:             s.description,
		Inputs:                  inputs,
		Targets:                 s.targets,
		Flags:                   model.NewRequestFlags(flags),
		IgnoreFile:              cfg.Analysis.IgnoreFile,
		SuppressBreakingChanges: append(append([]string(nil), cfg.Analysis.SuppressBreakingChanges...), s.suppress...),
		MaxRequestBytes:         cfg.Analysis.MaxRequestBytes,
		Formats:                 cfg.Output.Formats,
		OutputFile:              cfg.Output.File,
		Overwrite:               cfg.Output.Overwrite,
	}
	if opts.ApplicationName == "" && len(inputs) > 0 {
		opts.ApplicationName = filepath.Base(inputs[0])
	}
	if s.ignoreFile != "" {
		opts.IgnoreFile = s.ignoreFile
	}
	if len(s.formats) > 0 {
		opts.Formats = s.formats
	}
	if outGiven {
		opts.OutputFile = s.out
		opts.Overwrite = true
	}
	if s.dumpRequest {
		opts.DumpRequest = os.Stderr
	}
	return opts
}

func printSummary(result *client.Result) {
	resp := result.Response

	fmt.Println()
	output.Header(fmt.Sprintf("Portability summary (%s)", resp.SubmissionID))

	rows := [][]string{{"Assembly"}}
	for _, t := range resp.Targets {
		rows[0] = append(rows[0], t.FullName())
	}
	if resp.ReportingResult != nil {
		for _, usage := range resp.ReportingResult.AssemblyUsage {
			row := []string{usage.Assembly.Name()}
			for _, index := range usage.PortabilityIndex {
				row = append(row, fmt.Sprintf("%.1f%%", index*100))
			}
			rows = append(rows, row)
		}
	}
	output.Table(rows)
	fmt.Println()

	if n := len(resp.MissingDependencies); n > 0 {
		output.Warn(fmt.Sprintf("%d APIs are missing on at least one target", n))
	}
	if n := len(resp.BreakingChanges); n > 0 {
		output.Warn(fmt.Sprintf("%d breaking changes apply", n))
	}
	if n := len(resp.UnresolvedUserAssemblies); n > 0 {
		output.Info(fmt.Sprintf("%d referenced assemblies were not found", n))
		for _, name := range resp.UnresolvedUserAssemblies {
			output.Verbose("  " + name)
		}
	}
	for _, path := range result.InvalidFiles {
		output.Warn(fmt.Sprintf("Skipped missing input: %s", path))
	}
	if result.Info != nil {
		for _, name := range result.Info.AssembliesWithErrors {
			output.Warn(fmt.Sprintf("Could not read: %s", name))
		}
		for _, id := range result.Info.SortedDiagnostics() {
			output.Verbose(fmt.Sprintf("Skipped rows in %s: %s", id, result.Info.Diagnostics[id]))
		}
	}

	for _, path := range result.ReportPaths {
		output.Success(fmt.Sprintf("Report written: %s", path))
	}
	if len(result.ReportPaths) == 0 {
		output.Success("Analysis complete")
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
