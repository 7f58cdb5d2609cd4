// Package api maps the ledger operations onto the platform's REST surface.
// It is plumbing: every request resolves a trusted account id (or fails
// authentication) and delegates to the ledger service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/earnly/earnly/internal/app/ledger"
	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

// Server is the earnly HTTP API server.
type Server struct {
	ledger         *ledger.Service
	db             *sqlite.DB
	sessionTTL     time.Duration
	metricsEnabled bool
}

// NewServer creates the API server over a ledger service. sessionTTL bounds
// how long issued bearer tokens stay valid.
func NewServer(svc *ledger.Service, db *sqlite.DB, sessionTTL time.Duration) *Server {
	return &Server{ledger: svc, db: db, sessionTTL: sessionTTL}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/profile", s.handleProfile)
		r.Get("/balance", s.handleBalance)
		r.Get("/transactions/last", s.handleLastTransactions)
		r.Get("/transactions/history", s.handleHistory)
		r.Post("/update", s.handleUpdate)
		r.Post("/buy-task", s.handleBuyTask)
		r.Get("/tasks/status", s.handleTaskStatus)
		r.Post("/tasks/claim", s.handleClaim)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Response helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFailure writes the platform's failure envelope.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": msg,
	})
}

// writeLedgerError maps a ledger error onto an HTTP status and the failure
// envelope. Domain conditions are caller errors; only storage failures
// surface as 500.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionExpired):
		writeFailure(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNoActiveTask),
		errors.Is(err, domain.ErrAlreadyClaimed):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCodeSpaceExhausted):
		// The invite code space ran dry; the caller cannot fix this by
		// changing the request.
		writeFailure(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeFailure(w, http.StatusInternalServerError, "server error")
	}
}

// num renders a decimal as a bare JSON number, matching the API's original
// numeric fields.
func num(d interface{ String() string }) json.Number {
	return json.Number(d.String())
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
