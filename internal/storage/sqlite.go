package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ns INTEGER NOT NULL,
		total INTEGER NOT NULL,
		indexed INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON index_runs(started_at);

	CREATE TABLE IF NOT EXISTS run_failures (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		identifier TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES index_runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordRun stores a run report and its failures in one transaction.
func (s *SQLiteCatalog) RecordRun(ctx context.Context, report *indexer.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_runs (id, source, started_at, duration_ns, total, indexed, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Source, report.StartedAt.UTC(), int64(report.Duration),
		report.Total, report.Indexed, len(report.Failures),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(report.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_failures (run_id, position, identifier, reason) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare failure insert: %w", err)
		}
		defer stmt.Close()
		for i, f := range report.Failures {
			if _, err := stmt.ExecContext(ctx, report.RunID, i, f.Identifier, f.Reason); err != nil {
				return fmt.Errorf("failed to insert failure: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first, without failure details.
// A limit <= 0 returns all runs.
func (s *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]*models.IndexRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, duration_ns, total, indexed, failed
		 FROM index_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*models.IndexRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its failures in the order they occurred.
func (s *SQLiteCatalog) GetRun(ctx context.Context, id string) (*models.IndexRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, duration_ns, total, indexed, failed
		 FROM index_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, reason FROM run_failures WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Failures = make([]models.RunFailure, 0, run.Failed)
	for rows.Next() {
		var f models.RunFailure
		if err := rows.Scan(&f.Identifier, &f.Reason); err != nil {
			return nil, err
		}
		run.Failures = append(run.Failures, f)
	}
	return run, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (s *SQLiteCatalog) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_runs`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.IndexRun, error) {
	var (
		run      models.IndexRun
		duration int64
		started  time.Time
	)
	if err := sc.Scan(&run.ID, &run.Source, &started, &duration, &run.Total, &run.Indexed, &run.Failed); err != nil {
		return nil, err
	}
	run.StartedAt = started
	run.Duration = time.Duration(duration)
	return &run, nil
}
