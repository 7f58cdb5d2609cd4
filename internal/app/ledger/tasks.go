// Task purchase, status, and daily claim.
package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

// TaskStatus is the active subscription plus its resolved daily reward.
type TaskStatus struct {
	Subscription *domain.Subscription
	DailyReward  decimal.Decimal
}

// Purchase debits the principal and creates a subscription, atomically. The
// balance precondition is re-checked inside the transaction, so two
// concurrent purchases that together exceed the balance cannot both succeed.
func (s *Service) Purchase(ctx context.Context, accountID int64, amount decimal.Decimal) (subscriptionID int64, err error) {
	if !amount.IsPositive() {
		return 0, s.fail("purchase", domain.ErrInvalidAmount)
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := sqlite.AdjustBalance(ctx, tx, accountID, amount.Neg()); err != nil {
			return err
		}
		if _, err := sqlite.AppendEntry(ctx, tx, accountID, domain.KindWithdrawal, amount,
			domain.EntryMetadata{Reason: domain.ReasonTaskPurchase}); err != nil {
			return err
		}
		subscriptionID, err = sqlite.InsertSubscription(ctx, tx, accountID, amount)
		return err
	})
	if err != nil {
		return 0, s.fail("purchase", err)
	}

	s.metrics.ObservePurchase()
	return subscriptionID, nil
}

// Status returns the active subscription and its daily reward, or a nil
// subscription when the account never purchased a task.
func (s *Service) Status(ctx context.Context, accountID int64) (*TaskStatus, error) {
	sub, err := sqlite.ActiveSubscription(ctx, s.db.SQL(), accountID)
	if err != nil {
		return nil, s.fail("task_status", err)
	}
	if sub == nil {
		return &TaskStatus{}, nil
	}
	return &TaskStatus{Subscription: sub, DailyReward: s.dailyReward(sub.Amount)}, nil
}

// Claim credits the active subscription's daily reward once per UTC calendar
// day. The read of last_claim and its update happen in the same transaction,
// so two same-day claims racing each other resolve to exactly one success.
//
// A successful claim also appends a bonus entry for the reward, keeping the
// stored balance equal to the signed sum of the log. No entry is written for
// a zero reward (unknown plan): log amounts are strictly positive.
func (s *Service) Claim(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	reward := decimal.Zero

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		sub, err := sqlite.ActiveSubscription(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNoActiveTask
		}

		now := s.now()
		if sub.ClaimedOn(now) {
			return domain.ErrAlreadyClaimed
		}

		if err := sqlite.SetLastClaim(ctx, tx, sub.ID, now); err != nil {
			return err
		}

		reward = s.dailyReward(sub.Amount)
		if !reward.IsPositive() {
			return nil
		}

		if _, err := sqlite.AdjustBalance(ctx, tx, accountID, reward); err != nil {
			return err
		}
		_, err = sqlite.AppendEntry(ctx, tx, accountID, domain.KindBonus, reward,
			domain.EntryMetadata{Reason: domain.ReasonTaskClaim})
		return err
	})
	if err != nil {
		return decimal.Zero, s.fail("claim", err)
	}

	s.metrics.ObserveClaim()
	return reward, nil
}
