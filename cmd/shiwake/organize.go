package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shiwake/internal/collect"
	"shiwake/internal/config"
	"shiwake/internal/errors"
	"shiwake/internal/history"
	"shiwake/internal/log"
	"shiwake/internal/organize"
	"shiwake/internal/permissions"
	"shiwake/internal/tui"
	"shiwake/pkg/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type organizeOptions struct {
	input        string
	dest         string
	recursive    bool
	dryRun       bool
	unclassified string
	timeout      time.Duration
	useTUI       bool
	strictAccess bool
	noHistory    bool
}

// NewOrganizeCmd creates the organize command
func NewOrganizeCmd() *cobra.Command {
	var opts organizeOptions

	cmd := &cobra.Command{
		Use:   "organize [files...]",
		Short: "Move files into category folders",
		Long: `Organize the given files, or every file in the input folder when none
are given, into <dest>/<category>/. Ctrl+C stops after the current file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("recursive") {
				cfg.Settings.Recursive = opts.recursive
			}
			if !cmd.Flags().Changed("dry-run") {
				opts.dryRun = cfg.Settings.DryRun
			}
			if opts.unclassified != "" {
				cfg.Settings.Unclassified = opts.unclassified
			}
			return runOrganize(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input folder (default from config)")
	cmd.Flags().StringVarP(&opts.dest, "dest", "d", "", "destination root (default is the first output folder)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "include files in subfolders of the input folder")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be moved without moving anything")
	cmd.Flags().StringVar(&opts.unclassified, "unclassified", "", "what to do with unmatched files: other or skip")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "stop the batch after this long (0 means no limit)")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "show an interactive progress view")
	cmd.Flags().BoolVar(&opts.strictAccess, "strict-access", false, "check read/write access before moving each file")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record this run in the history journal")

	return cmd
}

func runOrganize(cmd *cobra.Command, args []string, opts organizeOptions) error {
	out := cmd.OutOrStdout()

	files, err := organizeTargets(args, opts.input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No files to organize.")
		return nil
	}

	dest := opts.dest
	if dest == "" {
		dest = cfg.DefaultDestination()
	}
	if dest == "" {
		return errors.NewConfigError("no destination: pass --dest or run 'shiwake folders add-output'", "output_folders", errors.ConfigNotSet, nil)
	}

	orchOpts := []organize.Option{
		organize.WithLogger(log.Default()),
		organize.WithTransferer(organize.NewExecutor(
			organize.WithPermissionRepair(cfg.Settings.RepairPermissions),
			organize.WithExecutorLogger(log.Default()),
		)),
	}
	if opts.strictAccess {
		orchOpts = append(orchOpts, organize.WithAccessChecker(permissions.NewOS()))
	}
	if cfg.History.Enabled && !opts.noHistory {
		journal, err := openHistory()
		if err != nil {
			log.LogWithError(err).Warn("History disabled for this run")
		} else {
			defer journal.Close()
			orchOpts = append(orchOpts, organize.WithRecorder(journal))
		}
	}
	runner := organize.CurrentOrchestratorFactory(orchOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := runner.StartBatch(ctx, organize.Request{
		Files:           files,
		DestinationRoot: dest,
		Ruleset:         cfg.Categories,
		Classification: organize.Classification{
			Unclassified:  cfg.Settings.Unclassified,
			OtherCategory: cfg.Settings.OtherCategory,
		},
		DryRun:  opts.dryRun,
		Timeout: opts.timeout,
	})
	if err != nil {
		return err
	}

	stop := cancelOnInterrupt(runner)
	defer stop()

	if opts.dryRun {
		fmt.Fprintln(out, paint(out, warningStyle, "Dry run: nothing will be moved."))
	}

	if opts.useTUI {
		p := tea.NewProgram(tui.New(run), tea.WithOutput(out), tea.WithInput(cmd.InOrStdin()))
		if _, err := p.Run(); err != nil {
			run.Cancel()
			return fmt.Errorf("progress view failed: %w", err)
		}
	} else {
		followRun(cmd.ErrOrStderr(), run, shouldColorize(cmd.ErrOrStderr()))
	}

	summary, err := run.Wait(ctx)
	if err != nil {
		return err
	}
	printResults(out, summary)
	return nil
}

// organizeTargets returns the explicit files, or collects the input folder.
func organizeTargets(args []string, input string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if input == "" {
		input = cfg.InputFolder
	}
	found, err := collect.Collect(collect.Options{
		Input:         input,
		Recursive:     cfg.Settings.Recursive,
		OutputFolders: cfg.OutputFolders,
		CategoryNames: bucketNames(cfg),
		Exclude:       cfg.Settings.Exclude,
	})
	if err != nil {
		return nil, err
	}
	log.LogWithFields(
		log.F("input", input),
		log.F("files", len(found)),
		log.F("size", humanize.IBytes(uint64(types.TotalSize(found)))),
	).Debug("Collected input files")
	return types.Paths(found), nil
}

func bucketNames(c *config.Config) []string {
	names := c.Categories.Names()
	if c.Settings.Unclassified != types.UnclassifiedSkip {
		names = append(names, c.Settings.OtherCategory)
	}
	return names
}

func openHistory() (*history.Store, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

// cancelOnInterrupt asks runner to stop when SIGINT or SIGTERM arrives.
func cancelOnInterrupt(runner organize.BatchRunner) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			log.Info("Interrupt received, stopping after the current file")
			runner.CancelBatch()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func printResults(w io.Writer, s types.RunSummary) {
	if len(s.Results) > 0 {
		rows := make([][]string, 0, len(s.Results))
		for _, r := range s.Results {
			status := paint(w, successStyle, "ok")
			detail := r.DestinationPath
			if !r.Success {
				status = paint(w, errorStyle, "failed")
				detail = r.Message
			}
			rows = append(rows, []string{filepath.Base(r.FilePath), status, r.Category, detail, humanize.IBytes(uint64(r.Size))})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"File", "Status", "Category", "Destination / Reason", "Size"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
	fmt.Fprintln(w, summaryLine(w, s))
}

func summaryLine(w io.Writer, s types.RunSummary) string {
	var moved int64
	for _, r := range s.Results {
		if r.Success {
			moved += r.Size
		}
	}
	verb := "moved"
	if s.DryRun {
		verb = "would move"
	}
	line := fmt.Sprintf("%d of %d files %s (%s), %d failed in %s",
		s.Succeeded, s.TotalFiles, verb, humanize.IBytes(uint64(moved)), s.Failed,
		s.Duration().Round(time.Millisecond))
	if s.Cancelled {
		return paint(w, warningStyle, "Cancelled: "+line)
	}
	if s.Failed > 0 {
		return paint(w, errorStyle, line)
	}
	return paint(w, successStyle, line)
}
