package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Every ledger
// operation surfaces one of these (or wraps ErrStorage); nothing panics past
// its own boundary.

var (
	// Account errors
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrNotFound            = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	// Task errors
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNoActiveTask   = errors.New("no active task found")
	ErrAlreadyClaimed = errors.New("already claimed today")

	// Invite code errors
	ErrCodeSpaceExhausted = errors.New("invite code space exhausted")

	// Session errors
	ErrSessionExpired = errors.New("session expired or unknown")

	// ErrStorage wraps any unanticipated persistence failure. The atomic unit
	// that hit it is rolled back, never half-committed.
	ErrStorage = errors.New("storage failure")
)
