// Package tasks delivers order identifiers to the scanner, one at a time.
package tasks

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Next when the source has been drained or shut down.
var ErrClosed = errors.New("task source closed")

// Source yields order ids to scan. Next blocks until an id is available, the
// context is done, or the source is closed.
type Source interface {
	Next(ctx context.Context) (orderID string, err error)
}

// MemorySource is a fixed-queue Source for tests and one-shot runs.
type MemorySource struct {
	mu    sync.Mutex
	queue []string
}

// NewMemorySource creates a source pre-loaded with order ids.
func NewMemorySource(orderIDs ...string) *MemorySource {
	return &MemorySource{queue: append([]string(nil), orderIDs...)}
}

// Push appends an order id to the queue.
func (s *MemorySource) Push(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, orderID)
}

// Next pops the next order id. Returns ErrClosed when the queue is empty.
func (s *MemorySource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", ErrClosed
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, nil
}

// Verify interface compliance at compile time.
var _ Source = (*MemorySource)(nil)
