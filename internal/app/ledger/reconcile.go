// Reconciliation: the testable side of the ledger invariant.
package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/infra/sqlite"
)

// ReconcileReport compares an account's stored balance against the signed
// sum of its confirmed log entries.
type ReconcileReport struct {
	AccountID int64           `json:"account_id"`
	Stored    decimal.Decimal `json:"stored_balance"`
	LogSum    decimal.Decimal `json:"log_sum"`
}

// Balanced reports whether the ledger invariant holds for this account.
func (r ReconcileReport) Balanced() bool { return r.Stored.Equal(r.LogSum) }

// Reconcile checks one account. Both reads run in a single transaction so a
// concurrent mutation cannot produce a false drift report.
func (s *Service) Reconcile(ctx context.Context, accountID int64) (ReconcileReport, error) {
	report := ReconcileReport{AccountID: accountID}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		if report.Stored, err = sqlite.GetBalance(ctx, tx, accountID); err != nil {
			return err
		}
		report.LogSum, err = sqlite.SumConfirmed(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return report, s.fail("reconcile", err)
	}
	return report, nil
}

// ReconcileAll checks every account and returns one report per account.
func (s *Service) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	ids, err := sqlite.ListAccountIDs(ctx, s.db.SQL())
	if err != nil {
		return nil, s.fail("reconcile", err)
	}

	reports := make([]ReconcileReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
