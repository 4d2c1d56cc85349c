package memory

import (
	"context"
	"sync"

	"deposit-reconciler/internal/storage"
)

// ScanEventStore is an in-memory implementation of storage.ScanEventStore.
type ScanEventStore struct {
	mu     sync.Mutex
	events []*storage.ScanEvent
}

// NewScanEventStore creates a new in-memory scan event store.
func NewScanEventStore() *ScanEventStore {
	return &ScanEventStore{}
}

// Insert appends a scan event.
func (s *ScanEventStore) Insert(_ context.Context, e *storage.ScanEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// Events returns a snapshot of all recorded events.
func (s *ScanEventStore) Events() []*storage.ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*storage.ScanEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Verify interface compliance at compile time.
var _ storage.ScanEventStore = (*ScanEventStore)(nil)
