// Route handlers. Requests and responses follow the platform's original
// envelope: {"success":true,...} or {"success":false,"message":...}.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
)

// ─── Auth ───────────────────────────────────────────────────────────────────

// handleSignup registers an account and returns a session token plus the
// invite code issued to the new user.
// POST /auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		InviteCode string `json:"invite_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "email+password required")
		return
	}

	result, err := s.ledger.Signup(r.Context(), req.Name, req.Email, req.Password, req.InviteCode)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	token, err := s.issueSession(r.Context(), result.Account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"token":       token,
		"invite_code": result.InviteCode,
	})
}

// handleLogin verifies credentials and mints a session token.
// POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.ledger.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	token, err := s.issueSession(r.Context(), account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   token,
	})
}

// ─── Account ────────────────────────────────────────────────────────────────

// handleProfile returns the account row plus referral fan-out.
// GET /user/profile
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	account, invitees, err := s.ledger.Profile(r.Context(), accountID(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":          account.ID,
			"name":        account.Name,
			"email":       account.Email,
			"invite_code": account.InviteCode,
			"inviter_id":  account.InviterID,
			"invitees":    invitees,
			"balance":     num(account.Balance),
			"is_admin":    account.Admin,
			"created_at":  account.CreatedAt,
		},
	})
}

// handleBalance returns the stored balance.
// GET /user/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.Balance(r.Context(), accountID(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": num(balance),
	})
}

// handleUpdate renames the account.
// POST /user/update
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeFailure(w, http.StatusBadRequest, "Name required")
		return
	}

	if err := s.ledger.Rename(r.Context(), accountID(r), req.Name); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated",
	})
}

// ─── Transaction log ────────────────────────────────────────────────────────

// handleLastTransactions returns the newest recharge and withdrawal, with
// zero placeholders when an account has none of a kind.
// GET /user/transactions/last
func (s *Server) handleLastTransactions(w http.ResponseWriter, r *http.Request) {
	id := accountID(r)

	last := func(kind domain.EntryKind) (map[string]any, error) {
		entries, err := s.ledger.RecentEntries(r.Context(), id, kind, 1)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return map[string]any{"amount": 0, "date": nil}, nil
		}
		return map[string]any{
			"amount": num(entries[0].Amount),
			"date":   entries[0].CreatedAt,
		}, nil
	}

	deposit, err := last(domain.KindRecharge)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	withdraw, err := last(domain.KindWithdrawal)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"lastDeposit":  deposit,
		"lastWithdraw": withdraw,
	})
}

// handleHistory returns one page of the transaction log, newest first.
// GET /user/transactions/history?page=&limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	entries, err := s.ledger.History(r.Context(), accountID(r), page, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		data = append(data, map[string]any{
			"transaction_id": e.TxID,
			"type":           e.Kind,
			"amount":         num(e.Amount),
			"status":         e.Status,
			"metadata":       e.Metadata,
			"created_at":     e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"page":    page,
		"limit":   limit,
		"data":    data,
	})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// handleBuyTask purchases a task subscription.
// POST /user/buy-task
func (s *Server) handleBuyTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount json.Number `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if _, err := s.ledger.Purchase(r.Context(), accountID(r), amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task purchased successfully",
	})
}

// handleTaskStatus returns the active subscription and its daily reward.
// GET /user/tasks/status
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ledger.Status(r.Context(), accountID(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if status.Subscription == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"activePlan": nil,
		})
		return
	}

	sub := status.Subscription
	var lastClaim *time.Time
	if sub.LastClaim != nil {
		lastClaim = sub.LastClaim
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"activePlan": map[string]any{
			"id":           sub.ID,
			"user_id":      sub.AccountID,
			"amount":       num(sub.Amount),
			"daily_reward": num(status.DailyReward),
			"last_claim":   lastClaim,
			"created_at":   sub.CreatedAt,
		},
	})
}

// handleClaim claims the daily reward.
// POST /user/tasks/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	reward, err := s.ledger.Claim(r.Context(), accountID(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reward":  num(reward),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
