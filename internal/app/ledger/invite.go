// Invite code allocation.
package ledger

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/earnly/earnly/internal/domain"
	"github.com/earnly/earnly/internal/infra/sqlite"
)

const (
	codePrefix   = "INV-"
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// generateCode produces one candidate code: the fixed marker plus six random
// uppercase alphanumerics.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return codePrefix + string(buf), nil
}

// allocateCode returns a code not currently assigned to any account. The
// generate-and-check loop is bounded: after CodeRetryLimit collisions it
// fails with domain.ErrCodeSpaceExhausted instead of spinning.
//
// The check here is advisory; the UNIQUE constraint on accounts.invite_code
// is the last word, and insert-time races surface as the same error so the
// signup loop can retry with a fresh code.
func (s *Service) allocateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.cfg.CodeRetryLimit; attempt++ {
		code, err := s.genCode()
		if err != nil {
			return "", err
		}
		taken, err := sqlite.InviteCodeExists(ctx, s.db.SQL(), code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}
