package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/internal/organize"
	"shiwake/internal/watch"
	"shiwake/pkg/types"

	"github.com/spf13/cobra"
)

// NewWatchCmd creates a command for watch mode
func NewWatchCmd() *cobra.Command {
	var (
		input    string
		dest     string
		dryRun   bool
		debounce time.Duration
		existing bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Organize new files as they arrive in the input folder",
		Long: `Watch the input folder and organize files once it has been quiet for the
debounce interval. Runs in the foreground until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				input = cfg.InputFolder
			}
			if dest == "" {
				dest = cfg.DefaultDestination()
			}
			if dest == "" {
				return errors.NewConfigError("no destination: pass --dest or run 'shiwake folders add-output'", "output_folders", errors.ConfigNotSet, nil)
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Watch.Debounce()
			}
			if !cmd.Flags().Changed("dry-run") {
				dryRun = cfg.Settings.DryRun
			}

			orchOpts := []organize.Option{
				organize.WithLogger(log.Default()),
				organize.WithTransferer(organize.NewExecutor(
					organize.WithPermissionRepair(cfg.Settings.RepairPermissions),
				)),
			}
			if cfg.History.Enabled {
				journal, err := openHistory()
				if err != nil {
					log.LogWithError(err).Warn("History disabled for this session")
				} else {
					defer journal.Close()
					orchOpts = append(orchOpts, organize.WithRecorder(journal))
				}
			}
			runner := organize.CurrentOrchestratorFactory(orchOpts...)

			daemon, err := watch.NewDaemon(watch.Options{
				Input:           input,
				DestinationRoot: dest,
				Ruleset:         cfg.Categories,
				Classification: organize.Classification{
					Unclassified:  cfg.Settings.Unclassified,
					OtherCategory: cfg.Settings.OtherCategory,
				},
				DryRun:   dryRun,
				Debounce: debounce,
				Ignore:   cfg.ExcludeMatchers(),
			}, runner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			daemon.SetCallback(func(r types.FileResult) {
				if r.Success {
					fmt.Fprintf(out, "%s %s → %s\n", paint(out, successStyle, "✓"), filepath.Base(r.FilePath), r.Category)
				} else {
					fmt.Fprintf(out, "%s %s: %s\n", paint(out, errorStyle, "✗"), filepath.Base(r.FilePath), r.Message)
				}
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := daemon.Start(ctx); err != nil {
				return err
			}
			if existing {
				files, err := organizeTargets(nil, input)
				if err != nil {
					daemon.Stop()
					return err
				}
				daemon.Enqueue(files...)
			}

			status := daemon.Status()
			fmt.Fprintf(out, "Watching %s → %s (debounce %s). Press Ctrl+C to stop.\n",
				status.Input, status.DestinationRoot, debounce)

			<-ctx.Done()
			daemon.Stop()

			status = daemon.Status()
			fmt.Fprintf(out, "Stopped. %d files organized.\n", status.FilesProcessed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "folder to watch (default from config)")
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination root (default is the first output folder)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "log what would be moved without moving anything")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before new files are organized (default from config)")
	cmd.Flags().BoolVar(&existing, "existing", false, "also organize files already in the folder")

	return cmd
}
