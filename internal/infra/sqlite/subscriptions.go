// Task subscription operations. Rows are never deleted; the newest row per
// account is the active subscription.
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

// InsertSubscription creates a subscription with last_claim = NULL and
// returns its id. Run inside the same transaction as the purchase debit.
func InsertSubscription(ctx context.Context, q Queryer, accountID int64, amount decimal.Decimal) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO task_subscriptions (account_id, amount, last_claim, created_at)
		VALUES (?, ?, NULL, ?)
	`, accountID, amount.String(), formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	return res.LastInsertId()
}

// ActiveSubscription returns the most recently created subscription for an
// account, or nil when there is none.
func ActiveSubscription(ctx context.Context, q Queryer, accountID int64) (*domain.Subscription, error) {
	var (
		s         domain.Subscription
		amount    string
		lastClaim sql.NullString
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, account_id, amount, last_claim, created_at
		FROM task_subscriptions
		WHERE account_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, accountID).Scan(&s.ID, &s.AccountID, &amount, &lastClaim, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active subscription: %w", err)
	}

	if s.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if lastClaim.Valid {
		t, err := parseTime(lastClaim.String)
		if err != nil {
			return nil, err
		}
		s.LastClaim = &t
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetLastClaim stamps the subscription's last claim time. Run inside the
// same transaction as the reward credit.
func SetLastClaim(ctx context.Context, q Queryer, subscriptionID int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE task_subscriptions SET last_claim = ? WHERE id = ?`,
		formatTime(at), subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("set last claim: %w", err)
	}
	return nil
}
