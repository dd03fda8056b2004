// Package journal records engine runs in a local SQLite database so that
// past mutations of a web map can be reviewed after the fact. Every run
// gets one row; simulated runs are recorded with the dry-run flag set.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version 1 is the initial layout. Bumps gate future migrations.
const currentSchemaVersion = 1

// Entry is one recorded engine run.
type Entry struct {
	// ID is the run id, assigned on append when empty.
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	ItemID    string    `json:"itemId"`
	Operation string    `json:"operation"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	// Verified records whether the saved changes were confirmed: snapshot
	// verification for the global filter, the store's acknowledgement for
	// the other operations. Always false for dry runs.
	Verified bool `json:"verified"`
	DryRun   bool `json:"dryRun"`
}

// Journal is an append-only run log backed by SQLite.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path, applying pragmas
// and the schema. Safe to call on an existing database.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records one run. A missing ID gets a fresh run id and a zero
// StartedAt gets the current time. Returns the run id.
func (j *Journal) Append(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, item_id, operation, updated, skipped, errors, verified, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.ItemID,
		e.Operation,
		e.Updated,
		e.Skipped,
		e.Errors,
		e.Verified,
		e.DryRun,
	)
	if err != nil {
		return "", fmt.Errorf("append run: %w", err)
	}
	return e.ID, nil
}

// Recent returns the most recent entries, newest first. A non-positive
// limit defaults to 20.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, item_id, operation, updated, skipped, errors, verified, dry_run
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var started string
		if err := rows.Scan(&e.ID, &started, &e.ItemID, &e.Operation,
			&e.Updated, &e.Skipped, &e.Errors, &e.Verified, &e.DryRun); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", started, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return entries, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply journal schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
