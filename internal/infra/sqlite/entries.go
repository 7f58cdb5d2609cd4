// Transaction log operations. The log is append-only: this file exposes no
// UPDATE or DELETE, which enforces immutability at the API surface rather
// than by convention.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/domain"
)

// Page size bounds for ListPage.
const (
	minPageSize = 1
	maxPageSize = 100
)

// AppendEntry writes one immutable confirmed log entry and returns its
// transaction identifier. The identifier is generated here, independently of
// the row's autoincrement key, in the TX-<uuid> form.
func AppendEntry(ctx context.Context, q Queryer, accountID int64, kind domain.EntryKind, amount decimal.Decimal, meta domain.EntryMetadata) (string, error) {
	txID := "TX-" + uuid.NewString()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO ledger_entries (tx_id, account_id, kind, amount, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, txID, accountID, string(kind), amount.String(), string(domain.StatusConfirmed),
		string(metaJSON), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("append entry: %w", err)
	}
	return txID, nil
}

// ListRecent returns the newest entries for an account, optionally filtered
// by kind (empty kind means all). Ordered by seq descending so ties in
// created_at break deterministically.
func ListRecent(ctx context.Context, q Queryer, accountID int64, kind domain.EntryKind, limit int) ([]domain.Entry, error) {
	if limit < 1 {
		limit = 1
	}

	query := `
		SELECT seq, tx_id, account_id, kind, amount, status, metadata, created_at
		FROM ledger_entries
		WHERE account_id = ?`
	args := []any{accountID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListPage returns one page of an account's log, newest first. page is
// 1-based; pageSize is clamped to [1,100]. Pages past the end return an
// empty slice, never an error.
func ListPage(ctx context.Context, q Queryer, accountID int64, page, pageSize int) ([]domain.Entry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < minPageSize {
		pageSize = minPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize

	rows, err := q.QueryContext(ctx, `
		SELECT seq, tx_id, account_id, kind, amount, status, metadata, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY seq DESC
		LIMIT ? OFFSET ?
	`, accountID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list entries page: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SumConfirmed returns the signed sum of an account's confirmed entries:
// credits add, withdrawals subtract, starting from zero. This is the
// reconciliation side of the ledger invariant.
func SumConfirmed(ctx context.Context, q Queryer, accountID int64) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, amount FROM ledger_entries
		WHERE account_id = ? AND status = ?
	`, accountID, string(domain.StatusConfirmed))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum entries: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var kind, raw string
		if err := rows.Scan(&kind, &raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := parseAmount(raw)
		if err != nil {
			return decimal.Zero, err
		}
		if domain.EntryKind(kind).Credits() {
			sum = sum.Add(amount)
		} else {
			sum = sum.Sub(amount)
		}
	}
	return sum, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]domain.Entry, error) {
	entries := []domain.Entry{}
	for rows.Next() {
		var (
			e         domain.Entry
			kind      string
			amount    string
			status    string
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&e.Seq, &e.TxID, &e.AccountID, &kind, &amount, &status, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		e.Status = domain.EntryStatus(status)
		var err error
		if e.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
