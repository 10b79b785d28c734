// Package history keeps a SQLite journal of finished runs and their
// per-file outcomes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shiwake/pkg/types"
)

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps WAL checkpoints simple.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores a finished run and its results in one transaction.
func (s *Store) RecordRun(ctx context.Context, summary types.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, destination_root, started_at, finished_at, total_files,
            processed_files, succeeded, failed, cancelled, dry_run
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.DestinationRoot,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.TotalFiles,
		summary.ProcessedFiles,
		summary.Succeeded,
		summary.Failed,
		boolToInt(summary.Cancelled),
		boolToInt(summary.DryRun),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_results (
            run_id, seq, file_path, success, message, destination_path, category, size
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range summary.Results {
		if _, err := stmt.ExecContext(ctx,
			summary.RunID, i, r.FilePath, boolToInt(r.Success), r.Message,
			nullableString(r.DestinationPath), nullableString(r.Category), r.Size,
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", summary.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, without their results. A
// non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error) {
	query := `SELECT id, destination_root, started_at, finished_at, total_files,
        processed_files, succeeded, failed, cancelled, dry_run
        FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its results. It returns ErrNotFound for an
// unknown id.
func (s *Store) GetRun(ctx context.Context, runID string) (types.RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, destination_root, started_at, finished_at, total_files,
        processed_files, succeeded, failed, cancelled, dry_run
        FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return types.RunSummary{}, ErrNotFound
	}
	if err != nil {
		return types.RunSummary{}, err
	}
	run.Results, err = s.Results(ctx, runID)
	return run, err
}

// Results returns the per-file outcomes of a run in processing order.
func (s *Store) Results(ctx context.Context, runID string) ([]types.FileResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path, success, message, destination_path, category, size
        FROM run_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []types.FileResult
	for rows.Next() {
		var (
			r        types.FileResult
			success  int
			dest     sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&r.FilePath, &success, &r.Message, &dest, &category, &r.Size); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Success = success != 0
		r.DestinationPath = dest.String
		r.Category = category.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Prune deletes runs that finished before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE finished_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
