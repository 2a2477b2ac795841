package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/build"
	"github.com/conneroisu/templine/internal/config"
	"github.com/conneroisu/templine/internal/logging"
	"github.com/conneroisu/templine/internal/scanner"
)

var buildCmd = &cobra.Command{
	Use:     "build [path...]",
	Aliases: []string{"b"},
	Short:   "Annotate every template below the scan paths",
	Long: `Compile and rewrite every template found below the configured scan paths
(or the paths given as arguments) and write the instrumented programs to the
output directory. With --render each program is also evaluated and the
annotated output is written next to it.

Examples:
  templine build
  templine build views mail --render --data-file data.yml
  templine build --workers 8 --format json`,
	RunE: runBuild,
}

var (
	buildFlags     *StandardFlags
	buildRender    bool
	buildWorkers   int
	buildOutputDir string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildFlags = AddStandardFlags(buildCmd, "data", "format")
	buildCmd.Flags().BoolVar(&buildRender, "render", false, "also write annotated output")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "number of concurrent workers (default from build.workers)")
	buildCmd.Flags().StringVar(&buildOutputDir, "output-dir", "", "output directory (default from build.output_dir)")
}

// buildReport is the structured form of a build summary.
type buildReport struct {
	Templates  int           `json:"templates" yaml:"templates"`
	Succeeded  int64         `json:"succeeded" yaml:"succeeded"`
	Failed     int64         `json:"failed" yaml:"failed"`
	CacheHits  int64         `json:"cache_hits" yaml:"cache_hits"`
	Directives int64         `json:"directives" yaml:"directives"`
	Duration   string        `json:"duration" yaml:"duration"`
	Results    []buildOutput `json:"results" yaml:"results"`
}

type buildOutput struct {
	Template string `json:"template" yaml:"template"`
	Program  string `json:"program,omitempty" yaml:"program,omitempty"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	Cached   bool   `json:"cached" yaml:"cached"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := buildFlags.ValidateFlags(); err != nil {
		return err
	}

	ctx, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	applyBuildOverrides(cfg, args)

	pipeline, s, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	paths, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan templates: %w", err)
	}
	tasks, err := build.TasksFromScanner(s, paths)
	if err != nil {
		return err
	}

	results, buildErr := pipeline.Build(ctx, tasks)
	metrics := pipeline.Metrics()

	out := cmd.OutOrStdout()
	if buildFlags.OutputFormat != "" && buildFlags.OutputFormat != "text" {
		report := buildReport{
			Templates:  len(tasks),
			Succeeded:  metrics.SuccessfulBuilds,
			Failed:     metrics.FailedBuilds,
			CacheHits:  metrics.CacheHits,
			Directives: metrics.Directives,
			Duration:   time.Since(start).Round(time.Millisecond).String(),
		}
		for _, r := range results {
			entry := buildOutput{Template: r.Task.Name, Program: r.ProgramPath, Output: r.OutputPath, Cached: r.CacheHit}
			if r.Error != nil {
				entry.Error = r.Error.Error()
			}
			report.Results = append(report.Results, entry)
		}
		if err := printStructured(out, buildFlags.OutputFormat, report); err != nil {
			return err
		}
		return buildErr
	}

	if !buildFlags.Quiet {
		for _, r := range results {
			printResult(cmd, r)
		}
	}
	if len(tasks) == 0 {
		printWarn(out, "no templates found below %v", cfg.Build.ScanPaths)
		return nil
	}

	summary := fmt.Sprintf("%d templates, %d failed, %d cached in %s",
		len(tasks), metrics.FailedBuilds, metrics.CacheHits, time.Since(start).Round(time.Millisecond))
	if buildErr != nil {
		printFail(out, "%s", summary)
		return buildErr
	}
	printOK(out, "%s", summary)
	return nil
}

// applyBuildOverrides applies command-line flags and path arguments.
func applyBuildOverrides(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Build.ScanPaths = args
	}
	if buildWorkers > 0 {
		cfg.Build.Workers = buildWorkers
	}
	if buildOutputDir != "" {
		cfg.Build.OutputDir = buildOutputDir
	}
	cfg.TargetFiles = args
}

// newPipeline wires a scanner rooted at the working directory and a
// pipeline from cfg and the shared build flags.
func newPipeline(cfg *config.Config, logger logging.Logger) (*build.Pipeline, *scanner.TemplateScanner, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting current directory: %w", err)
	}
	s, err := scanner.New(cfg.Build, cwd)
	if err != nil {
		return nil, nil, err
	}

	var data map[string]interface{}
	if buildRender {
		if data, err = buildFlags.ParseData(cfg.Render.DataFile); err != nil {
			return nil, nil, err
		}
	}

	pipeline := build.NewPipeline(build.Options{
		Workers:   cfg.Build.Workers,
		OutputDir: cfg.Build.OutputDir,
		Encoding:  cfg.Render.Encoding,
		CacheSize: cfg.Build.CacheSize,
		Render:    buildRender,
		Data:      data,
		Logger:    logger,
	})
	return pipeline, s, nil
}

func printResult(cmd *cobra.Command, r build.BuildResult) {
	if r.Error != nil {
		printFail(cmd.ErrOrStderr(), "%s: %v", r.Task.Name, r.Error)
		return
	}
	status := r.ProgramPath
	if r.OutputPath != "" {
		status = r.OutputPath
	}
	if r.CacheHit {
		status += dimColor.Sprint(" (cached)")
	}
	printOK(cmd.OutOrStdout(), "%s -> %s", r.Task.Name, status)
}
