package main

import (
	"fmt"
	"strconv"
	"time"

	"shiwake/internal/errors"
	"shiwake/internal/history"
	"shiwake/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openHistory()
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.RunID,
					humanize.Time(r.StartedAt),
					strconv.Itoa(r.TotalFiles),
					strconv.Itoa(r.Succeeded),
					strconv.Itoa(r.Failed),
					runStatus(r),
					r.DestinationRoot,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Files", "OK", "Failed", "Status", "Destination"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs to show")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-file outcomes of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := openHistory()
			if err != nil {
				return err
			}
			defer journal.Close()

			run, err := journal.GetRun(cmd.Context(), args[0])
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no run with id %q", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s into %s, %s (%s)\n", run.RunID, run.DestinationRoot,
				run.StartedAt.Format("2006-01-02 15:04:05"), runStatus(run))
			printResults(out, run)
			return nil
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:     "prune",
		Short:   "Delete runs that finished longer ago than --older-than",
		Example: "  shiwake history prune --older-than 720h",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.NewValidationError("older-than", "must be positive", nil)
			}
			journal, err := openHistory()
			if err != nil {
				return err
			}
			defer journal.Close()

			cutoff := time.Now().Add(-olderThan)
			n, err := journal.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s finished before %s.\n",
				n, pluralRuns(n), cutoff.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the newest run to delete")

	cmd.AddCommand(list, show, prune)
	return cmd
}

func runStatus(r types.RunSummary) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.DryRun:
		return "dry run"
	case r.Failed > 0:
		return "with failures"
	}
	return "done"
}

func pluralRuns(n int64) string {
	if n == 1 {
		return "run"
	}
	return "runs"
}
