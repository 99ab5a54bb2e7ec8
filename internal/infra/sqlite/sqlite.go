// Package sqlite persists the household data: people, chores,
// completions, envelopes, ledger entries, and the exchange-rate cache.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies all
// migrations. Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is single-writer; serialize access at the pool.
	conn.SetMaxOpenConns(1)

	db := &DB{db: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// migrate executes each migration statement in order. Statements are
// idempotent (IF NOT EXISTS) so running them on every boot is safe.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS people (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			color      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS chores (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			start_date      TEXT NOT NULL,
			frequency       TEXT NOT NULL DEFAULT 'NONE',
			interval        INTEGER NOT NULL DEFAULT 1,
			by_weekday      TEXT NOT NULL DEFAULT '[]',
			by_month_day    TEXT NOT NULL DEFAULT '[]',
			mode            TEXT NOT NULL DEFAULT 'static',
			assignees       TEXT NOT NULL DEFAULT '[]',
			rotation_order  TEXT NOT NULL DEFAULT '[]',
			rotation_period TEXT NOT NULL DEFAULT '',
			joint           INTEGER NOT NULL DEFAULT 0,
			weight          REAL NOT NULL DEFAULT 0,
			reward_type     TEXT NOT NULL DEFAULT '',
			reward_amount   TEXT NOT NULL DEFAULT '0',
			reward_currency TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chores_start ON chores(start_date)`,

		`CREATE TABLE IF NOT EXISTS completions (
			id                TEXT PRIMARY KEY,
			chore_id          TEXT NOT NULL,
			due_date          TEXT NOT NULL,
			person_id         TEXT NOT NULL,
			marked_by         TEXT NOT NULL DEFAULT '',
			completed         INTEGER NOT NULL DEFAULT 0,
			completed_at      TEXT,
			allowance_awarded INTEGER NOT NULL DEFAULT 0,
			UNIQUE(chore_id, due_date, person_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_due ON completions(due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_completions_chore ON completions(chore_id, due_date)`,

		`CREATE TABLE IF NOT EXISTS envelopes (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			name          TEXT NOT NULL,
			balances      TEXT NOT NULL DEFAULT '{}',
			is_default    INTEGER NOT NULL DEFAULT 0,
			goal_amount   TEXT NOT NULL DEFAULT '0',
			goal_currency TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_envelopes_owner ON envelopes(owner_id)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id           TEXT PRIMARY KEY,
			envelope_id  TEXT NOT NULL,
			counterparty TEXT NOT NULL DEFAULT '',
			type         TEXT NOT NULL,
			amount       TEXT NOT NULL,
			currency     TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_envelope ON ledger_entries(envelope_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS exchange_rates (
			base       TEXT NOT NULL,
			target     TEXT NOT NULL,
			rate       REAL NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (base, target)
		)`,
	}
}
