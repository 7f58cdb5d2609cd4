// Account creation and credential verification.
package ledger

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

// insertRetries bounds how many times Signup restarts its atomic block after
// losing an invite-code uniqueness race to a concurrent signup. The race
// needs two signups to draw the same fresh code in the same instant, so a
// handful of retries is plenty.
const insertRetries = 3

// SignupResult is what a successful signup hands back to the transport.
type SignupResult struct {
	Account    *domain.Account
	InviterID  *int64
	InviteCode string
}

// Signup registers an account and applies the signup write-set atomically:
// the account row (opening balance = new-user bonus), its bonus log entry,
// and, when the supplied invite code resolves, the inviter's referral credit,
// the inviter's log entry, and the referral edge. Either all five writes land
// or none do.
//
// An invite code that resolves to nothing is silently ignored; the account is
// still created with no inviter.
func (s *Service) Signup(ctx context.Context, name, email, password, inviteCode string) (*SignupResult, error) {
	taken, err := sqlite.EmailExists(ctx, s.db.SQL(), email)
	if err != nil {
		return nil, s.fail("signup", err)
	}
	if taken {
		return nil, s.fail("signup", domain.ErrDuplicateEmail)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.fail("signup", err)
	}

	var inviterID *int64
	if inviteCode != "" {
		if inviterID, err = sqlite.ResolveInviteCode(ctx, s.db.SQL(), inviteCode); err != nil {
			return nil, s.fail("signup", err)
		}
	}

	var accountID int64
	for attempt := 0; ; attempt++ {
		code, err := s.allocateCode(ctx)
		if err != nil {
			return nil, s.fail("signup", err)
		}

		accountID, err = s.createAccountTx(ctx, name, email, string(hash), code, inviterID)
		if err == nil {
			break
		}
		// Lost the insert-time race for the code: try again with a fresh one.
		if errors.Is(err, domain.ErrCodeSpaceExhausted) && attempt < insertRetries {
			continue
		}
		return nil, s.fail("signup", err)
	}

	account, err := sqlite.GetAccount(ctx, s.db.SQL(), accountID)
	if err != nil {
		return nil, s.fail("signup", err)
	}

	s.metrics.ObserveSignup(inviterID != nil)
	return &SignupResult{Account: account, InviterID: inviterID, InviteCode: account.InviteCode}, nil
}

// createAccountTx runs the signup write-set in one transaction.
func (s *Service) createAccountTx(ctx context.Context, name, email, passwordHash, code string, inviterID *int64) (int64, error) {
	var accountID int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		accountID, err = sqlite.InsertAccount(ctx, tx, sqlite.NewAccount{
			Name:         name,
			Email:        email,
			PasswordHash: passwordHash,
			Balance:      s.cfg.NewUserBonus,
			InviteCode:   code,
			InviterID:    inviterID,
		})
		if err != nil {
			return err
		}

		if _, err := sqlite.AppendEntry(ctx, tx, accountID, domain.KindBonus, s.cfg.NewUserBonus,
			domain.EntryMetadata{Reason: domain.ReasonSignup}); err != nil {
			return err
		}

		if inviterID == nil {
			return nil
		}

		if _, err := sqlite.AdjustBalance(ctx, tx, *inviterID, s.cfg.ReferralBonus); err != nil {
			return err
		}
		if _, err := sqlite.AppendEntry(ctx, tx, *inviterID, domain.KindBonus, s.cfg.ReferralBonus,
			domain.EntryMetadata{Reason: domain.ReasonReferral, InviteeID: accountID}); err != nil {
			return err
		}
		return sqlite.InsertReferralEdge(ctx, tx, *inviterID, accountID)
	})
	return accountID, err
}

// Login verifies credentials and returns the account. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := sqlite.GetAccountByEmail(ctx, s.db.SQL(), email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.fail("login", domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, s.fail("login", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, s.fail("login", domain.ErrInvalidCredentials)
	}
	return account, nil
}
