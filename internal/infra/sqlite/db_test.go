package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// newTestDB opens a fresh database in a per-test temp dir. Migrations run
// inside Open.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "earnly.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// mustCreateAccount inserts an account with the given email and opening
// balance and returns its id.
func mustCreateAccount(t *testing.T, db *DB, email string, balance int64) int64 {
	t.Helper()
	id, err := InsertAccount(context.Background(), db.SQL(), NewAccount{
		Name:         "test",
		Email:        email,
		PasswordHash: "x",
		Balance:      decimal.NewFromInt(balance),
		InviteCode:   "INV-" + email,
	})
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
	return id
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// ─── Schema ─────────────────────────────────────────────────────────────────

func TestMigrations_TablesExist(t *testing.T) {
	db := newTestDB(t)

	tables := []string{
		"accounts",
		"ledger_entries",
		"referral_edges",
		"task_subscriptions",
		"sessions",
	}

	for _, table := range tables {
		var count int
		err := db.sql.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found in database", table)
		}
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

// ─── Corruption visibility ──────────────────────────────────────────────────

func TestGetAccount_MalformedTimestampSurfaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := mustCreateAccount(t, db, "a@x.com", 100)

	if _, err := db.sql.Exec(`UPDATE accounts SET created_at = 'garbage' WHERE id = ?`, id); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := GetAccount(ctx, db.SQL(), id); err == nil {
		t.Fatal("expected error for malformed created_at, got nil")
	}
}
