package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/templine/internal/build"
	"github.com/conneroisu/templine/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [path...]",
	Aliases: []string{"w"},
	Short:   "Rebuild templates when they change",
	Long: `Run a full build, then watch the scan paths and rebuild each template when
it changes. Outputs of deleted templates are removed. Uses the same flags as
build.

Examples:
  templine watch
  templine watch views --render --data-file data.yml`,
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	rootCmd.AddCommand(watchCmd)

	// watch shares build's flag variables.
	watchCmd.Flags().AddFlagSet(buildCmd.Flags())
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "delay before rebuilding after a change")
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	fileWatcher, err := watcher.NewFileWatcher(s.Root(), watchDebounce,
		watcher.WithLogger(logger),
		watcher.WithSkipDir(cfg.Build.OutputDir),
	)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.ExtensionFilter(cfg.Build.Extensions...))
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoBackupFilter)
	fileWatcher.AddFilter(s.Matches)
	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		return handleChanges(ctx, cmd, pipeline, events, s.Rel)
	})

	out := cmd.OutOrStdout()
	for _, path := range cfg.Build.ScanPaths {
		if err := fileWatcher.AddRecursive(path); err != nil {
			printWarn(cmd.ErrOrStderr(), "failed to watch %s: %v", path, err)
			continue
		}
		fmt.Fprintf(out, "Watching %s\n", path)
	}

	paths, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan templates: %w", err)
	}
	tasks, err := build.TasksFromScanner(s, paths)
	if err != nil {
		return err
	}
	results, err := pipeline.Build(ctx, tasks)
	for _, r := range results {
		if r.Error != nil {
			printResult(cmd, r)
		}
	}
	if err != nil {
		printWarn(out, "initial build: %v", err)
	} else {
		printOK(out, "initial build: %d templates", len(tasks))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")

	<-ctx.Done()
	fmt.Fprintln(out, "Stopping file watcher...")
	return nil
}

// handleChanges rebuilds changed templates and removes outputs of deleted
// ones.
func handleChanges(ctx context.Context, cmd *cobra.Command, pipeline *build.Pipeline, events []watcher.ChangeEvent, rel func(string) (string, error)) error {
	failed := 0
	for _, event := range events {
		name, err := rel(event.Path)
		if err != nil {
			return err
		}
		task := build.Task{Path: event.Path, Name: filepath.ToSlash(name)}

		if event.Gone() {
			if _, statErr := os.Stat(event.Path); os.IsNotExist(statErr) {
				if err := pipeline.Remove(task); err != nil {
					return err
				}
				printWarn(cmd.OutOrStdout(), "%s removed", task.Name)
				continue
			}
		}

		result := pipeline.BuildOne(ctx, task)
		printResult(cmd, result)
		if result.Error != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d changed templates failed", failed, len(events))
	}
	return nil
}
