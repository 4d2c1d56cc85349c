package postgres

import (
	"context"
	"fmt"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL. The orders table
// is written by the upstream order-management process; the scanner only reads.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// FindOrder retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT order_id, deposit_address, method, created_at, creation_block
		FROM orders
		WHERE order_id = $1
	`

	var o domain.Order
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.DepositAddress,
		&o.Method,
		&o.CreatedAt,
		&o.CreationBlock,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

// Put adds a new order. Returns ErrDuplicateKey if order_id exists. Fixture
// and tooling helper; the scanner itself never writes orders.
func (s *OrderStore) Put(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO orders (order_id, deposit_address, method, created_at, creation_block)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID,
		o.DepositAddress,
		o.Method,
		o.CreatedAt,
		o.CreationBlock,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
