package storage

import (
	"context"
	"math/big"

	"deposit-reconciler/internal/domain"
)

// OrderStore provides read access to pending orders.
type OrderStore interface {
	// FindOrder retrieves an order by its ID. Returns ErrNotFound if not exists.
	FindOrder(ctx context.Context, id string) (*domain.Order, error)
}

// DepositStore is the credit sink. It owns the deposits table and enforces
// at-most-one credit per dedup key under concurrent or repeated calls.
type DepositStore interface {
	// CreditIfAbsent records a deposit keyed by dedupKey. Returns applied=false
	// without error when a deposit with the same dedup key already exists.
	CreditIfAbsent(ctx context.Context, dedupKey, orderID string, amount *big.Int, txHash string) (applied bool, err error)

	// GetByDedupKey retrieves a credited deposit. Returns ErrNotFound if not exists.
	GetByDedupKey(ctx context.Context, dedupKey string) (*domain.Deposit, error)
}

// ScanEvent is one audit row describing a per-candidate scan outcome.
type ScanEvent struct {
	RunID     string
	OrderID   string
	TxHash    string
	Outcome   string // "credited", "rejected", "error"
	Reason    string // rejection reason or error text; empty for credits
	Page      int
	Amount    *big.Int // credited amount; nil otherwise
	Timestamp int64    // unix seconds
}

// ScanEventStore records scan outcomes for analysis. Append-only; duplicates
// across re-scans are expected and kept.
type ScanEventStore interface {
	Insert(ctx context.Context, e *ScanEvent) error
}
