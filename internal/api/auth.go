// Session issuance and the authentication middleware. Tokens are opaque
// random values stored server-side, so revocation is a row delete.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/earnly/earnly/internal/infra/sqlite"
)

// accountIDKey is the request-context key carrying the authenticated
// account id.
type contextKey string

const accountIDKey contextKey = "account_id"

// issueSession mints a bearer token for an account.
func (s *Server) issueSession(ctx context.Context, accountID int64) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	token := hex.EncodeToString(buf)

	expires := time.Now().Add(s.sessionTTL)
	if err := sqlite.InsertSession(ctx, s.db.SQL(), token, accountID, expires); err != nil {
		return "", err
	}
	return token, nil
}

// requireSession resolves the bearer token to a trusted account id. The
// ledger itself performs no authentication; this is the identity collaborator
// in front of it.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		accountID, err := sqlite.ResolveSession(r.Context(), s.db.SQL(), token)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountID extracts the authenticated account id set by requireSession.
func accountID(r *http.Request) int64 {
	id, _ := r.Context().Value(accountIDKey).(int64)
	return id
}
