// Package ledger is the orchestration layer of the balance engine. It
// composes the account store, transaction log, referral graph, and task
// subscription tracker into atomic, invariant-preserving transitions.
//
// The invariant it maintains: an account's stored balance equals the signed
// sum of its confirmed log entries. Every balance delta is written in the
// same database transaction as the entry that justifies it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/observability"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

// Config carries the tunables that were ambient environment reads in earlier
// revisions of this system. It is passed in at construction, never read from
// the environment inside operation bodies.
type Config struct {
	NewUserBonus   decimal.Decimal
	ReferralBonus  decimal.Decimal
	Plans          []domain.Plan
	CodeRetryLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NewUserBonus:   decimal.NewFromInt(120),
		ReferralBonus:  decimal.NewFromInt(10),
		CodeRetryLimit: 20,
		Plans: []domain.Plan{
			{Amount: decimal.NewFromInt(100), DailyReward: decimal.NewFromInt(2)},
			{Amount: decimal.NewFromInt(500), DailyReward: decimal.NewFromInt(12)},
			{Amount: decimal.NewFromInt(1000), DailyReward: decimal.NewFromInt(28)},
		},
	}
}

// Service exposes the ledger operations. All methods are safe for concurrent
// use; mutations serialize through the database's immediate transactions.
type Service struct {
	db      *sqlite.DB
	cfg     Config
	plans   map[string]decimal.Decimal
	metrics *observability.Metrics

	// Swapped out by tests to force code collisions and pin the clock.
	genCode func() (string, error)
	now     func() time.Time
}

// New constructs the service. metrics may be nil.
func New(db *sqlite.DB, cfg Config, metrics *observability.Metrics) *Service {
	if cfg.CodeRetryLimit <= 0 {
		cfg.CodeRetryLimit = DefaultConfig().CodeRetryLimit
	}

	plans := make(map[string]decimal.Decimal, len(cfg.Plans))
	for _, p := range cfg.Plans {
		plans[planKey(p.Amount)] = p.DailyReward
	}

	return &Service{
		db:      db,
		cfg:     cfg,
		plans:   plans,
		metrics: metrics,
		genCode: generateCode,
		now:     time.Now,
	}
}

// dailyReward resolves the plan keyed by a subscription's principal amount.
// A missing plan means reward zero, not an error.
func (s *Service) dailyReward(amount decimal.Decimal) decimal.Decimal {
	if reward, ok := s.plans[planKey(amount)]; ok {
		return reward
	}
	return decimal.Zero
}

// planKey normalizes an amount so 100, 100.0 and 100.00 hit the same plan.
func planKey(amount decimal.Decimal) string {
	return amount.Truncate(8).String()
}

// ─── Reads and metadata updates ─────────────────────────────────────────────

// Balance returns the stored balance for an account.
func (s *Service) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance, err := sqlite.GetBalance(ctx, s.db.SQL(), accountID)
	return balance, s.fail("balance", err)
}

// Profile returns the account row plus its referral fan-out.
func (s *Service) Profile(ctx context.Context, accountID int64) (*domain.Account, int, error) {
	account, err := sqlite.GetAccount(ctx, s.db.SQL(), accountID)
	if err != nil {
		return nil, 0, s.fail("profile", err)
	}
	invitees, err := sqlite.CountInvitees(ctx, s.db.SQL(), accountID)
	if err != nil {
		return nil, 0, s.fail("profile", err)
	}
	return account, invitees, nil
}

// Rename updates the display name. No ledger implications.
func (s *Service) Rename(ctx context.Context, accountID int64, name string) error {
	return s.fail("rename", sqlite.RenameAccount(ctx, s.db.SQL(), accountID, name))
}

// RecentEntries returns the newest log entries, optionally filtered by kind.
func (s *Service) RecentEntries(ctx context.Context, accountID int64, kind domain.EntryKind, limit int) ([]domain.Entry, error) {
	entries, err := sqlite.ListRecent(ctx, s.db.SQL(), accountID, kind, limit)
	return entries, s.fail("recent_entries", err)
}

// History returns one page of the transaction log, newest first.
func (s *Service) History(ctx context.Context, accountID int64, page, pageSize int) ([]domain.Entry, error) {
	entries, err := sqlite.ListPage(ctx, s.db.SQL(), accountID, page, pageSize)
	return entries, s.fail("history", err)
}

// ─── Error policy ───────────────────────────────────────────────────────────

// fail counts the error and normalizes anything that is not a domain
// sentinel into a wrapped domain.ErrStorage. Callers can always errors.Is
// against the taxonomy.
func (s *Service) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	s.metrics.ObserveError(op)
	if isDomainErr(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorage, err)
}

func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		domain.ErrDuplicateEmail,
		domain.ErrNotFound,
		domain.ErrInsufficientBalance,
		domain.ErrInvalidCredentials,
		domain.ErrInvalidAmount,
		domain.ErrNoActiveTask,
		domain.ErrAlreadyClaimed,
		domain.ErrCodeSpaceExhausted,
		domain.ErrSessionExpired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
