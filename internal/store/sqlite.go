// Package store provides SQLite-backed journaling for the Crucible engine:
// applied changes, stress events, and synthesis events, queryable per
// creature. The journal is an audit surface, not a save format.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS creatures (
	creature_id     TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	environment     TEXT NOT NULL DEFAULT '',
	extinct         INTEGER NOT NULL DEFAULT 0,
	created_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS change_records (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	creature_id  TEXT NOT NULL,
	change_id    TEXT NOT NULL,
	source       TEXT NOT NULL,
	priority     INTEGER NOT NULL DEFAULT 0,
	outcome      TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	reverted     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_change_records_creature ON change_records(creature_id, id);

CREATE TABLE IF NOT EXISTS stress_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	creature_id  TEXT NOT NULL,
	threshold    TEXT NOT NULL,
	stress       REAL NOT NULL DEFAULT 0.0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stress_events_creature ON stress_events(creature_id, id);

CREATE TABLE IF NOT EXISTS synthesis_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	creature_id  TEXT NOT NULL,
	trait_id     TEXT NOT NULL,
	kind         TEXT NOT NULL,
	source_form  TEXT NOT NULL DEFAULT '',
	result_form  TEXT NOT NULL DEFAULT '',
	catalyst     TEXT NOT NULL DEFAULT '',
	intensity    REAL NOT NULL DEFAULT 0.0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_synthesis_events_creature ON synthesis_events(creature_id, trait_id, id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
