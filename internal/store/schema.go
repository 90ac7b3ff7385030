package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the version InitSchema brings a catalog to.
const SchemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,  -- 'running', 'complete', 'failed', 'interrupted'
    log_path TEXT NOT NULL,
    topology TEXT,
    series_dir TEXT,
    metrics TEXT,          -- JSON array
    first_step INTEGER NOT NULL DEFAULT 0,
    last_step INTEGER NOT NULL DEFAULT -1,
    stop INTEGER NOT NULL DEFAULT 0,
    steps INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    started_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_log_path ON runs(log_path);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// schemaV2 adds the status index used by ListRuns.
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, started_at);
`

// migrations[i] upgrades a catalog from version i to i+1.
var migrations = []string{schemaV1, schemaV2}

// InitSchema creates or upgrades the catalog schema. An existing catalog is
// integrity checked first, and one written by a newer ringsim is refused.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := readVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("catalog schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if version > 0 {
		if err := ValidateIntegrity(ctx, db); err != nil {
			return err
		}
	}
	return migrate(ctx, db, version)
}

// readVersion returns 0 for a database without a schema_version table.
func readVersion(ctx context.Context, db *sql.DB) (int, error) {
	var tables int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).Scan(&tables)
	if err != nil {
		return 0, fmt.Errorf("reading catalog version: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}

	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading catalog version: %w", err)
	}
	return int(version.Int64), nil
}

// migrate applies every migration after version from in one transaction.
func migrate(ctx context.Context, db *sql.DB, from int) error {
	if from >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upgrading catalog: %w", err)
	}
	defer tx.Rollback()

	for v := from; v < SchemaVersion; v++ {
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("upgrading catalog to v%d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			v+1, formatTime(time.Now())); err != nil {
			return fmt.Errorf("recording catalog v%d: %w", v+1, err)
		}
	}
	return tx.Commit()
}

// ValidateIntegrity reports every problem PRAGMA integrity_check finds.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("catalog integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("catalog integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("catalog integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("catalog integrity check failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResetSchema drops the catalog tables and recreates them. Tests only.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"runs", "schema_version"} {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}
