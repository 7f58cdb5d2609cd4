// Account store operations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
)

// NewAccount carries the fields InsertAccount writes. Balance starts at the
// caller-chosen opening amount (the signup bonus); the caller is responsible
// for appending the matching log entry in the same transaction.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	InviteCode   string
	InviterID    *int64
}

// InsertAccount creates an account and returns its id.
// A duplicate email maps to domain.ErrDuplicateEmail; a duplicate invite code
// maps to domain.ErrCodeSpaceExhausted so the caller's allocation loop can
// retry the race.
func InsertAccount(ctx context.Context, q Queryer, a NewAccount) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO accounts (name, email, password_hash, balance, invite_code, inviter_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.Name, a.Email, a.PasswordHash, a.Balance.String(), a.InviteCode, a.InviterID, formatTime(time.Now()))
	if err != nil {
		switch {
		case isUniqueViolation(err, "accounts.email"):
			return 0, domain.ErrDuplicateEmail
		case isUniqueViolation(err, "accounts.invite_code"):
			return 0, domain.ErrCodeSpaceExhausted
		default:
			return 0, fmt.Errorf("insert account: %w", err)
		}
	}
	return res.LastInsertId()
}

// GetAccount loads an account by id.
func GetAccount(ctx context.Context, q Queryer, id int64) (*domain.Account, error) {
	return scanAccount(q.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, balance, invite_code, inviter_id, is_admin, created_at
		FROM accounts WHERE id = ?
	`, id))
}

// GetAccountByEmail loads an account by its unique email.
func GetAccountByEmail(ctx context.Context, q Queryer, email string) (*domain.Account, error) {
	return scanAccount(q.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, balance, invite_code, inviter_id, is_admin, created_at
		FROM accounts WHERE email = ?
	`, email))
}

// EmailExists reports whether an account is registered under email.
func EmailExists(ctx context.Context, q Queryer, email string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = ?)`, email,
	).Scan(&exists)
	return exists, err
}

// ResolveInviteCode returns the id of the account owning code, or nil when no
// account does. Absence is not an error: an unresolvable code means
// "no inviter".
func ResolveInviteCode(ctx context.Context, q Queryer, code string) (*int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE invite_code = ?`, code,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve invite code: %w", err)
	}
	return &id, nil
}

// InviteCodeExists reports whether code is already assigned.
func InviteCodeExists(ctx context.Context, q Queryer, code string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE invite_code = ?)`, code,
	).Scan(&exists)
	return exists, err
}

// GetBalance returns the stored balance for an account.
func GetBalance(ctx context.Context, q Queryer, id int64) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, domain.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return parseAmount(raw)
}

// AdjustBalance applies a signed delta to an account's balance and returns the
// new balance. A debit that would push the balance negative fails with
// domain.ErrInsufficientBalance and writes nothing.
//
// The read-check-write here is only safe inside an immediate-mode transaction;
// callers must pass the Queryer of the atomic unit that also appends the
// justifying log entry.
func AdjustBalance(ctx context.Context, q Queryer, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := GetBalance(ctx, q, id)
	if err != nil {
		return decimal.Zero, err
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, domain.ErrInsufficientBalance
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, next.String(), id,
	); err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	return next, nil
}

// RenameAccount updates the display name. Pure metadata, no ledger effect.
func RenameAccount(ctx context.Context, q Queryer, id int64, name string) error {
	res, err := q.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListAccountIDs returns every account id, ascending. Used by reconciliation.
func ListAccountIDs(ctx context.Context, q Queryer) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a         domain.Account
		balance   string
		inviterID sql.NullInt64
		createdAt string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &balance,
		&a.InviteCode, &inviterID, &a.Admin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if a.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}
	if inviterID.Valid {
		a.InviterID = &inviterID.Int64
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed amount %q: %w", raw, err)
	}
	return d, nil
}
