// Session token storage for the API layer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/earnly/earnly/internal/domain"
)

// InsertSession stores a bearer token for an account.
func InsertSession(ctx context.Context, q Queryer, token string, accountID int64, expiresAt time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sessions (token, account_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, token, accountID, formatTime(expiresAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ResolveSession returns the account id behind a live token. Expired or
// unknown tokens fail with domain.ErrSessionExpired.
func ResolveSession(ctx context.Context, q Queryer, token string) (int64, error) {
	var (
		accountID int64
		expiresAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT account_id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&accountID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrSessionExpired
	}
	if err != nil {
		return 0, fmt.Errorf("resolve session: %w", err)
	}
	exp, err := parseTime(expiresAt)
	if err != nil {
		return 0, err
	}
	if time.Now().After(exp) {
		return 0, domain.ErrSessionExpired
	}
	return accountID, nil
}

// PurgeExpiredSessions deletes dead tokens and returns how many were removed.
func PurgeExpiredSessions(ctx context.Context, q Queryer) (int64, error) {
	res, err := q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
