package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/earnly/earnly/internal/app/ledger"
	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "earnly.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := ledger.New(db, ledger.DefaultConfig(), nil)
	return NewServer(svc, db, time.Hour).Handler()
}

// call sends a JSON request through the router and decodes the JSON reply.
func call(t *testing.T, h http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

// signupUser registers an account through the API and returns its token and
// invite code.
func signupUser(t *testing.T, h http.Handler, email, inviteCode string) (token, issued string) {
	t.Helper()
	code, resp := call(t, h, http.MethodPost, "/auth/signup", "", map[string]any{
		"name":        "tester",
		"email":       email,
		"password":    "hunter22",
		"invite_code": inviteCode,
	})
	if code != http.StatusOK {
		t.Fatalf("signup status = %d, body %v", code, resp)
	}
	token, _ = resp["token"].(string)
	issued, _ = resp["invite_code"].(string)
	if token == "" || issued == "" {
		t.Fatalf("signup response missing token or invite code: %v", resp)
	}
	return token, issued
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := setupServer(t)
	code, resp := call(t, h, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health = %d %v", code, resp)
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func TestSignup_IssuesTokenAndBonus(t *testing.T) {
	h := setupServer(t)
	token, issued := signupUser(t, h, "a@example.com", "")

	if issued[:4] != "INV-" {
		t.Errorf("invite code = %q, want INV- prefix", issued)
	}

	code, resp := call(t, h, http.MethodGet, "/user/balance", token, nil)
	if code != http.StatusOK {
		t.Fatalf("balance status = %d", code)
	}
	if resp["balance"] != float64(120) {
		t.Errorf("balance = %v, want 120", resp["balance"])
	}
}

func TestSignup_Validation(t *testing.T) {
	h := setupServer(t)

	code, resp := call(t, h, http.MethodPost, "/auth/signup", "", map[string]any{"email": "", "password": ""})
	if code != http.StatusBadRequest {
		t.Errorf("empty creds status = %d %v", code, resp)
	}

	signupUser(t, h, "dup@example.com", "")
	code, resp = call(t, h, http.MethodPost, "/auth/signup", "", map[string]any{
		"email": "dup@example.com", "password": "pw",
	})
	if code != http.StatusBadRequest {
		t.Errorf("duplicate email status = %d %v", code, resp)
	}
}

func TestLogin(t *testing.T) {
	h := setupServer(t)
	signupUser(t, h, "a@example.com", "")

	code, resp := call(t, h, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "a@example.com", "password": "hunter22",
	})
	if code != http.StatusOK || resp["token"] == "" {
		t.Fatalf("login = %d %v", code, resp)
	}

	code, _ = call(t, h, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "a@example.com", "password": "wrong",
	})
	if code != http.StatusBadRequest {
		t.Errorf("bad password status = %d", code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	h := setupServer(t)
	code, _ := call(t, h, http.MethodGet, "/user/balance", "", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}

	code, _ = call(t, h, http.MethodGet, "/user/balance", "bogus", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("bogus token status = %d, want 401", code)
	}
}

// ─── Referral over HTTP ─────────────────────────────────────────────────────

func TestSignup_ReferralCreditsInviter(t *testing.T) {
	h := setupServer(t)
	inviterToken, inviterCode := signupUser(t, h, "inviter@example.com", "")
	signupUser(t, h, "invitee@example.com", inviterCode)

	_, resp := call(t, h, http.MethodGet, "/user/balance", inviterToken, nil)
	if resp["balance"] != float64(130) {
		t.Errorf("inviter balance = %v, want 120+10", resp["balance"])
	}
}

// ─── Profile and rename ─────────────────────────────────────────────────────

func TestProfileAndUpdate(t *testing.T) {
	h := setupServer(t)
	token, issued := signupUser(t, h, "a@example.com", "")

	_, resp := call(t, h, http.MethodGet, "/user/profile", token, nil)
	user, _ := resp["user"].(map[string]any)
	if user == nil {
		t.Fatalf("profile = %v", resp)
	}
	if user["email"] != "a@example.com" || user["invite_code"] != issued {
		t.Errorf("user = %v", user)
	}

	code, _ := call(t, h, http.MethodPost, "/user/update", token, map[string]any{"name": "Renamed"})
	if code != http.StatusOK {
		t.Fatalf("update status = %d", code)
	}
	_, resp = call(t, h, http.MethodGet, "/user/profile", token, nil)
	user, _ = resp["user"].(map[string]any)
	if user["name"] != "Renamed" {
		t.Errorf("name = %v, want Renamed", user["name"])
	}

	code, _ = call(t, h, http.MethodPost, "/user/update", token, map[string]any{"name": ""})
	if code != http.StatusBadRequest {
		t.Errorf("blank name status = %d", code)
	}
}

// ─── Tasks over HTTP ────────────────────────────────────────────────────────

func TestBuyTaskStatusAndClaim(t *testing.T) {
	h := setupServer(t)
	token, _ := signupUser(t, h, "a@example.com", "")

	code, _ := call(t, h, http.MethodPost, "/user/buy-task", token, map[string]any{"amount": 100})
	if code != http.StatusOK {
		t.Fatalf("buy-task status = %d", code)
	}

	_, resp := call(t, h, http.MethodGet, "/user/tasks/status", token, nil)
	plan, _ := resp["activePlan"].(map[string]any)
	if plan == nil {
		t.Fatalf("status = %v", resp)
	}
	if plan["amount"] != float64(100) || plan["daily_reward"] != float64(2) {
		t.Errorf("plan = %v", plan)
	}
	if plan["last_claim"] != nil {
		t.Errorf("last_claim = %v, want null", plan["last_claim"])
	}

	code, resp = call(t, h, http.MethodPost, "/user/tasks/claim", token, nil)
	if code != http.StatusOK || resp["reward"] != float64(2) {
		t.Fatalf("claim = %d %v", code, resp)
	}

	code, _ = call(t, h, http.MethodPost, "/user/tasks/claim", token, nil)
	if code != http.StatusBadRequest {
		t.Errorf("same-day claim status = %d, want 400", code)
	}

	_, resp = call(t, h, http.MethodGet, "/user/balance", token, nil)
	if resp["balance"] != float64(22) {
		t.Errorf("balance = %v, want 120-100+2", resp["balance"])
	}
}

func TestBuyTask_Failures(t *testing.T) {
	h := setupServer(t)
	token, _ := signupUser(t, h, "a@example.com", "")

	code, _ := call(t, h, http.MethodPost, "/user/buy-task", token, map[string]any{"amount": 0})
	if code != http.StatusBadRequest {
		t.Errorf("zero amount status = %d", code)
	}
	code, _ = call(t, h, http.MethodPost, "/user/buy-task", token, map[string]any{"amount": 500})
	if code != http.StatusBadRequest {
		t.Errorf("insufficient status = %d", code)
	}
	code, _ = call(t, h, http.MethodPost, "/user/tasks/claim", token, nil)
	if code != http.StatusBadRequest {
		t.Errorf("claim without task status = %d", code)
	}
}

// ─── Transaction log over HTTP ──────────────────────────────────────────────

func TestTransactionsLastAndHistory(t *testing.T) {
	h := setupServer(t)
	token, _ := signupUser(t, h, "a@example.com", "")
	call(t, h, http.MethodPost, "/user/buy-task", token, map[string]any{"amount": 100})

	_, resp := call(t, h, http.MethodGet, "/user/transactions/last", token, nil)
	withdraw, _ := resp["lastWithdraw"].(map[string]any)
	if withdraw == nil || withdraw["amount"] != float64(100) {
		t.Errorf("lastWithdraw = %v", resp["lastWithdraw"])
	}
	deposit, _ := resp["lastDeposit"].(map[string]any)
	if deposit == nil || deposit["amount"] != float64(0) || deposit["date"] != nil {
		t.Errorf("lastDeposit = %v, want zero placeholder", resp["lastDeposit"])
	}

	_, resp = call(t, h, http.MethodGet, "/user/transactions/history?page=1&limit=10", token, nil)
	data, _ := resp["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("history = %d rows, want signup bonus + withdrawal", len(data))
	}
	newest, _ := data[0].(map[string]any)
	if newest["type"] != "withdrawal" {
		t.Errorf("newest entry = %v, want the withdrawal first", newest)
	}

	// Pages past the end are empty, not errors.
	code, resp := call(t, h, http.MethodGet, "/user/transactions/history?page=99", token, nil)
	if code != http.StatusOK {
		t.Fatalf("far page status = %d", code)
	}
	if data, _ := resp["data"].([]any); len(data) != 0 {
		t.Errorf("far page rows = %d, want 0", len(data))
	}
}

// ─── Error mapping ──────────────────────────────────────────────────────────

func TestWriteLedgerError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"session expired", domain.ErrSessionExpired, http.StatusUnauthorized},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusBadRequest},
		{"already claimed", fmt.Errorf("claim: %w", domain.ErrAlreadyClaimed), http.StatusBadRequest},
		{"code space exhausted", domain.ErrCodeSpaceExhausted, http.StatusServiceUnavailable},
		{"storage failure", domain.ErrStorage, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeLedgerError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
