// Referral graph operations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/earnly/earnly/internal/domain"
)

// InsertReferralEdge records the inviter→invitee link. Called at most once
// per invitee, during signup; the invitee-side primary key backs that up.
func InsertReferralEdge(ctx context.Context, q Queryer, inviterID, inviteeID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO referral_edges (invitee_id, inviter_id, created_at)
		VALUES (?, ?, ?)
	`, inviteeID, inviterID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert referral edge: %w", err)
	}
	return nil
}

// GetReferralEdge returns the edge whose invitee side is inviteeID, or nil
// when the account was not referred.
func GetReferralEdge(ctx context.Context, q Queryer, inviteeID int64) (*domain.ReferralEdge, error) {
	var (
		e         domain.ReferralEdge
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT inviter_id, invitee_id, created_at
		FROM referral_edges WHERE invitee_id = ?
	`, inviteeID).Scan(&e.InviterID, &e.InviteeID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral edge: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// CountInvitees returns how many accounts inviterID has referred.
func CountInvitees(ctx context.Context, q Queryer, inviterID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referral_edges WHERE inviter_id = ?`, inviterID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count invitees: %w", err)
	}
	return n, nil
}
