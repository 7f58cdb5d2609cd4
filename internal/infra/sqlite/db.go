// Package sqlite persists the four ledger relations: accounts, ledger
// entries, referral edges, and task subscriptions (plus API sessions).
//
// Every balance-affecting operation runs inside a single immediate-mode
// transaction, so concurrent mutations of the same account serialize and
// re-check their preconditions under the write lock rather than against a
// stale read.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle used by all stores.
type DB struct {
	sql *sql.DB
}

// Queryer is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Store functions take it so the ledger layer can compose several writes
// into one atomic unit.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at path and applies migrations.
// The _txlock=immediate option makes every transaction take the write lock
// at BEGIN, which is what serializes concurrent ledger mutations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{sql: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.sql.Close() }

// SQL returns the raw handle for read-only queries outside a transaction.
func (db *DB) SQL() *sql.DB { return db.sql }

// InTx runs fn inside one transaction. Commit on nil, rollback on error or
// panic. This is the atomic unit every ledger mutation executes in.
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// migrate applies the schema. Statements are idempotent so migrate can run
// on every Open.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.sql.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Account store: balance is a decimal kept as canonical text; SQLite
		// arithmetic never touches it, all math happens in Go.
		`CREATE TABLE IF NOT EXISTS accounts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			balance       TEXT NOT NULL DEFAULT '0',
			invite_code   TEXT NOT NULL UNIQUE,
			inviter_id    INTEGER,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		)`,

		// Transaction log: append-only. seq is the monotonic order token that
		// breaks timestamp ties; tx_id is the human-inspectable identifier.
		// No UPDATE or DELETE is ever issued against this table.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			tx_id      TEXT NOT NULL UNIQUE,
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			kind       TEXT NOT NULL,
			amount     TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'confirmed',
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_account ON ledger_entries(account_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_account_kind ON ledger_entries(account_id, kind, seq)`,

		// Referral graph: one inviter per invitee, enforced by the primary key.
		`CREATE TABLE IF NOT EXISTS referral_edges (
			invitee_id INTEGER PRIMARY KEY REFERENCES accounts(id),
			inviter_id INTEGER NOT NULL REFERENCES accounts(id),
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_inviter ON referral_edges(inviter_id)`,

		// Task subscriptions: never deleted; the newest row per account is the
		// active one.
		`CREATE TABLE IF NOT EXISTS task_subscriptions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			amount     TEXT NOT NULL,
			last_claim TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subs_account ON task_subscriptions(account_id, id)`,

		// API sessions: opaque bearer tokens.
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			account_id INTEGER NOT NULL REFERENCES accounts(id),
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
}

// ─── Helpers shared by the store files ──────────────────────────────────────

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column (e.g. "accounts.email").
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
