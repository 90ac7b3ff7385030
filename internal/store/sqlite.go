package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/ringsim/internal/constants"
)

// SQLiteRunStore implements RunStore on a single-connection SQLite database.
type SQLiteRunStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewSQLiteRunStore opens (creating if needed) the catalog at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// StartRun inserts a running run.
func (s *SQLiteRunStore) StartRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.LogPath == "" {
		return "", fmt.Errorf("run log path is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metrics: %w", err)
	}
	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// A process that died mid-run never finished its record.
	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ?, finished_at = ?
		WHERE log_path = ? AND status = ?
	`, constants.RunInterrupted.String(), now, now, run.LogPath, constants.RunRunning.String()); err != nil {
		return "", fmt.Errorf("failed to close stale runs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, status, log_path, topology, series_dir, metrics,
			first_step, last_step, stop, steps, started_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, run.ID, constants.RunRunning.String(), run.LogPath,
		nullString(run.Topology), nullString(run.SeriesDir), string(metricsJSON),
		run.FirstStep, run.FirstStep-1, run.Stop, now, now); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// RecordProgress updates the step counters of a run.
func (s *SQLiteRunStore) RecordProgress(ctx context.Context, id string, lastStep, steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET last_step = ?, steps = ?, updated_at = ? WHERE id = ?
	`, lastStep, steps, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return requireRow(res, id)
}

// FinishRun sets a terminal status and the finish time.
func (s *SQLiteRunStore) FinishRun(ctx context.Context, id string, status constants.RunStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish run with non-terminal status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = ?, finished_at = ? WHERE id = ?
	`, status.String(), nullString(errMsg), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return requireRow(res, id)
}

const runColumns = `
	id, status, log_path, topology, series_dir, metrics,
	first_step, last_step, stop, steps, error,
	started_at, updated_at, finished_at`

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs matching filter, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.LogPath != "" {
		where = append(where, "log_path = ?")
		args = append(args, filter.LogPath)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run                  Run
		status               string
		topology, seriesDir  sql.NullString
		metricsJSON, errMsg  sql.NullString
		startedAt, updatedAt string
		finishedAt           sql.NullString
	)
	err := sc.Scan(
		&run.ID, &status, &run.LogPath, &topology, &seriesDir, &metricsJSON,
		&run.FirstStep, &run.LastStep, &run.Stop, &run.Steps, &errMsg,
		&startedAt, &updatedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = constants.RunStatus(status)
	run.Topology = topology.String
	run.SeriesDir = seriesDir.String
	run.Error = errMsg.String
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics of run %s: %w", run.ID, err)
		}
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// timeLayout has a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
