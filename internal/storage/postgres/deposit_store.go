package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/storage"
)

// DepositStore implements storage.DepositStore using PostgreSQL. Idempotence
// rests on the dedup_key primary key: concurrent and repeated credits for the
// same key collapse into a single row.
type DepositStore struct {
	pool *Pool
	now  func() time.Time
}

// NewDepositStore creates a new DepositStore.
func NewDepositStore(pool *Pool) *DepositStore {
	return &DepositStore{
		pool: pool,
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ storage.DepositStore = (*DepositStore)(nil)

// CreditIfAbsent records a deposit unless one with the same dedup key exists.
// ON CONFLICT DO NOTHING makes the insert a no-op for a known key, so applied
// is true for exactly one caller per key.
func (s *DepositStore) CreditIfAbsent(ctx context.Context, dedupKey, orderID string, amount *big.Int, txHash string) (bool, error) {
	if dedupKey == "" || orderID == "" || amount == nil {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO deposits (dedup_key, order_id, amount, tx_hash, credited_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dedup_key) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		dedupKey,
		orderID,
		amount.String(),
		txHash,
		s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("credit deposit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByDedupKey retrieves a credited deposit. Returns ErrNotFound if not exists.
func (s *DepositStore) GetByDedupKey(ctx context.Context, dedupKey string) (*domain.Deposit, error) {
	query := `
		SELECT dedup_key, order_id, amount::text, tx_hash, credited_at
		FROM deposits
		WHERE dedup_key = $1
	`

	var d domain.Deposit
	var amountStr string
	err := s.pool.QueryRow(ctx, query, dedupKey).Scan(
		&d.DedupKey,
		&d.OrderID,
		&amountStr,
		&d.TxHash,
		&d.CreditedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deposit by dedup key: %w", err)
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("parse deposit amount %q", amountStr)
	}
	d.Amount = amount
	return &d, nil
}

// GetByOrderID retrieves all deposits credited to an order, oldest first.
func (s *DepositStore) GetByOrderID(ctx context.Context, orderID string) ([]*domain.Deposit, error) {
	query := `
		SELECT dedup_key, order_id, amount::text, tx_hash, credited_at
		FROM deposits
		WHERE order_id = $1
		ORDER BY credited_at ASC, dedup_key ASC
	`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get deposits by order id: %w", err)
	}
	defer rows.Close()

	var deposits []*domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		var amountStr string
		if err := rows.Scan(&d.DedupKey, &d.OrderID, &amountStr, &d.TxHash, &d.CreditedAt); err != nil {
			return nil, fmt.Errorf("scan deposit row: %w", err)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("parse deposit amount %q", amountStr)
		}
		d.Amount = amount
		deposits = append(deposits, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposit rows: %w", err)
	}

	return deposits, nil
}
