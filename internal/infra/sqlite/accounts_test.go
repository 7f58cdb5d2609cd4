package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
)

// ─── InsertAccount ──────────────────────────────────────────────────────────

func TestInsertAccount_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustCreateAccount(t, db, "a@example.com", 0)

	_, err := InsertAccount(ctx, db.SQL(), NewAccount{
		Email:        "a@example.com",
		PasswordHash: "x",
		InviteCode:   "INV-OTHER1",
	})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestInsertAccount_DuplicateInviteCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := InsertAccount(ctx, db.SQL(), NewAccount{
		Email: "a@example.com", PasswordHash: "x", InviteCode: "INV-SAME",
	}); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := InsertAccount(ctx, db.SQL(), NewAccount{
		Email: "b@example.com", PasswordHash: "x", InviteCode: "INV-SAME",
	})
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("err = %v, want ErrCodeSpaceExhausted", err)
	}
}

func TestGetAccount_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inviter := mustCreateAccount(t, db, "inviter@example.com", 50)
	id, err := InsertAccount(ctx, db.SQL(), NewAccount{
		Name:         "Bea",
		Email:        "bea@example.com",
		PasswordHash: "hash",
		Balance:      decimal.NewFromInt(120),
		InviteCode:   "INV-BEA123",
		InviterID:    &inviter,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := GetAccount(ctx, db.SQL(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Bea" || got.Email != "bea@example.com" {
		t.Errorf("account = %+v", got)
	}
	if !got.Balance.Equal(dec(120)) {
		t.Errorf("balance = %s, want 120", got.Balance)
	}
	if got.InviterID == nil || *got.InviterID != inviter {
		t.Errorf("inviter = %v, want %d", got.InviterID, inviter)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetAccount(context.Background(), db.SQL(), 9999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// ─── Invite code resolution ─────────────────────────────────────────────────

func TestResolveInviteCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := mustCreateAccount(t, db, "a@example.com", 0)

	got, err := ResolveInviteCode(ctx, db.SQL(), "INV-a@example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || *got != id {
		t.Errorf("resolved = %v, want %d", got, id)
	}

	// An unknown code is "no inviter", not an error.
	got, err = ResolveInviteCode(ctx, db.SQL(), "INV-NOSUCH")
	if err != nil {
		t.Fatalf("resolve unknown: %v", err)
	}
	if got != nil {
		t.Errorf("resolved = %v, want nil", got)
	}
}

// ─── AdjustBalance ──────────────────────────────────────────────────────────

func TestAdjustBalance_CreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := mustCreateAccount(t, db, "a@example.com", 100)

	got, err := AdjustBalance(ctx, db.SQL(), id, dec(50))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !got.Equal(dec(150)) {
		t.Errorf("after credit = %s, want 150", got)
	}

	got, err = AdjustBalance(ctx, db.SQL(), id, dec(-150))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("after debit = %s, want 0", got)
	}
}

func TestAdjustBalance_Insufficient(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := mustCreateAccount(t, db, "a@example.com", 100)

	_, err := AdjustBalance(ctx, db.SQL(), id, dec(-101))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// The failed debit must not have written anything.
	balance, err := GetBalance(ctx, db.SQL(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(dec(100)) {
		t.Errorf("balance = %s, want unchanged 100", balance)
	}
}

func TestAdjustBalance_ExactDebitAllowed(t *testing.T) {
	db := newTestDB(t)
	id := mustCreateAccount(t, db, "a@example.com", 100)

	got, err := AdjustBalance(context.Background(), db.SQL(), id, dec(-100))
	if err != nil {
		t.Fatalf("debit to zero: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("balance = %s, want 0", got)
	}
}

func TestAdjustBalance_FractionalAmounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := mustCreateAccount(t, db, "a@example.com", 0)

	delta, _ := decimal.NewFromString("0.1")
	for i := 0; i < 3; i++ {
		if _, err := AdjustBalance(ctx, db.SQL(), id, delta); err != nil {
			t.Fatal(err)
		}
	}

	balance, err := GetBalance(ctx, db.SQL(), id)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := decimal.NewFromString("0.3")
	if !balance.Equal(want) {
		t.Errorf("balance = %s, want exactly 0.3", balance)
	}
}

// ─── Rename ────────────────────────────────────────────────────────────────

func TestRenameAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := mustCreateAccount(t, db, "a@example.com", 0)

	if err := RenameAccount(ctx, db.SQL(), id, "New Name"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := GetAccount(ctx, db.SQL(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "New Name" {
		t.Errorf("name = %q", got.Name)
	}

	if err := RenameAccount(ctx, db.SQL(), 9999, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("rename missing: err = %v, want ErrNotFound", err)
	}
}
