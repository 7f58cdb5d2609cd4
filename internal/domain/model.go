// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Account ────────────────────────────────────────────────────────────────

// Account is a user's ledger account. Balance is never derived on read; it is
// maintained through paired writes (balance mutation + log entry) and checked
// against the log by Reconcile.
type Account struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	InviteCode   string          `json:"invite_code"`
	InviterID    *int64          `json:"inviter_id,omitempty"`
	Admin        bool            `json:"is_admin"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ─── Transaction Log ────────────────────────────────────────────────────────

// EntryKind is the business reason category of a ledger entry.
// The base set is bonus/recharge/withdrawal; the type is open to extension.
type EntryKind string

const (
	KindBonus      EntryKind = "bonus"
	KindRecharge   EntryKind = "recharge"
	KindWithdrawal EntryKind = "withdrawal"
)

// Credits reports whether entries of this kind add to the balance.
// Withdrawal is the only debiting kind; everything else credits.
func (k EntryKind) Credits() bool { return k != KindWithdrawal }

// EntryStatus is the settlement state of an entry. Only StatusConfirmed is
// produced today; Pending and Failed exist for future asynchronous settlement.
type EntryStatus string

const (
	StatusConfirmed EntryStatus = "confirmed"
	StatusPending   EntryStatus = "pending"
	StatusFailed    EntryStatus = "failed"
)

// Entry is one immutable row of the transaction log. Amount is always
// positive; direction comes from Kind. Seq is the log's monotonic order token
// and breaks timestamp ties.
type Entry struct {
	Seq       int64           `json:"-"`
	TxID      string          `json:"transaction_id"`
	AccountID int64           `json:"-"`
	Kind      EntryKind       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Status    EntryStatus     `json:"status"`
	Metadata  EntryMetadata   `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign implied by the entry kind.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind.Credits() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// EntryMetadata is the free-form reason payload attached to an entry.
type EntryMetadata struct {
	Reason    string `json:"reason"`
	InviteeID int64  `json:"invitee,omitempty"`
}

// Metadata reasons produced by the ledger operations.
const (
	ReasonSignup       = "signup"
	ReasonReferral     = "referral"
	ReasonTaskPurchase = "task_purchase"
	ReasonTaskClaim    = "task_claim"
)

// ─── Referral Graph ─────────────────────────────────────────────────────────

// ReferralEdge links an inviter to an invitee. Created once, at invitee
// signup, and only when a valid pre-existing invite code was supplied.
type ReferralEdge struct {
	InviterID int64     `json:"inviter_id"`
	InviteeID int64     `json:"invitee_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Task Subscriptions ─────────────────────────────────────────────────────

// Subscription is a purchased reward plan. The principal amount keys the plan
// lookup that determines the daily reward. LastClaim is nil until the first
// claim; older subscriptions are retained but only the newest is active.
type Subscription struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	LastClaim *time.Time      `json:"last_claim"`
	CreatedAt time.Time       `json:"created_at"`
}

// ClaimedOn reports whether the subscription's reward was already claimed on
// the calendar day containing t (UTC, date-only granularity).
func (s Subscription) ClaimedOn(t time.Time) bool {
	if s.LastClaim == nil {
		return false
	}
	y1, m1, d1 := s.LastClaim.UTC().Date()
	y2, m2, d2 := t.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Plan is one offered task tier. Amount is the join key subscriptions match
// against; DailyReward is credited per successful claim.
type Plan struct {
	Amount      decimal.Decimal `json:"amount"`
	DailyReward decimal.Decimal `json:"daily_reward"`
}
