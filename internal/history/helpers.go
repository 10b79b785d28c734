package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shiwake/pkg/types"
)

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("run not found")

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (types.RunSummary, error) {
	var (
		run               types.RunSummary
		started, finished string
		cancelled, dryRun int
	)
	err := row.Scan(
		&run.RunID, &run.DestinationRoot, &started, &finished, &run.TotalFiles,
		&run.ProcessedFiles, &run.Succeeded, &run.Failed, &cancelled, &dryRun,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, sql.ErrNoRows
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Cancelled = cancelled != 0
	run.DryRun = dryRun != 0
	return run, nil
}

// timeLayout has a fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
