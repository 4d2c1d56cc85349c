package memory

import (
	"context"
	"sync"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Order // keyed by order id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[string]*domain.Order),
	}
}

// Put adds or replaces an order. Test and fixture helper; the scanner itself
// never writes orders.
func (s *OrderStore) Put(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orderCopy := *o
	s.data[o.ID] = &orderCopy
	return nil
}

// FindOrder retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) FindOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	orderCopy := *o
	return &orderCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.OrderStore = (*OrderStore)(nil)
