package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/storage"
)

// DepositStore is an in-memory implementation of storage.DepositStore.
// First writer wins per dedup key; later calls are no-ops.
type DepositStore struct {
	mu   sync.Mutex
	data map[string]*domain.Deposit // keyed by dedup key
	now  func() time.Time
}

// NewDepositStore creates a new in-memory deposit store.
func NewDepositStore() *DepositStore {
	return &DepositStore{
		data: make(map[string]*domain.Deposit),
		now:  time.Now,
	}
}

// CreditIfAbsent records a deposit unless one with the same dedup key exists.
func (s *DepositStore) CreditIfAbsent(_ context.Context, dedupKey, orderID string, amount *big.Int, txHash string) (bool, error) {
	if dedupKey == "" || orderID == "" || amount == nil {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[dedupKey]; exists {
		return false, nil
	}

	s.data[dedupKey] = &domain.Deposit{
		DedupKey:   dedupKey,
		OrderID:    orderID,
		Amount:     new(big.Int).Set(amount),
		TxHash:     txHash,
		CreditedAt: s.now().Unix(),
	}
	return true, nil
}

// GetByDedupKey retrieves a credited deposit. Returns ErrNotFound if not exists.
func (s *DepositStore) GetByDedupKey(_ context.Context, dedupKey string) (*domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.data[dedupKey]
	if !exists {
		return nil, storage.ErrNotFound
	}

	depositCopy := *d
	depositCopy.Amount = new(big.Int).Set(d.Amount)
	return &depositCopy, nil
}

// Len returns the number of credited deposits.
func (s *DepositStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Verify interface compliance at compile time.
var _ storage.DepositStore = (*DepositStore)(nil)
