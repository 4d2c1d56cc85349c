package memory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"deposit-reconciler/internal/storage"
)

func TestDepositStore_CreditIfAbsent(t *testing.T) {
	store := NewDepositStore()
	ctx := context.Background()

	applied, err := store.CreditIfAbsent(ctx, "key1", "order1", big.NewInt(500), "0xaaa")
	if err != nil {
		t.Fatalf("CreditIfAbsent failed: %v", err)
	}
	if !applied {
		t.Error("First credit should be applied")
	}

	// Same dedup key again: no-op, not an error
	applied, err = store.CreditIfAbsent(ctx, "key1", "order1", big.NewInt(500), "0xaaa")
	if err != nil {
		t.Fatalf("Repeat CreditIfAbsent failed: %v", err)
	}
	if applied {
		t.Error("Repeat credit with same dedup key should not be applied")
	}

	if store.Len() != 1 {
		t.Errorf("Expected 1 deposit, got %d", store.Len())
	}
}

func TestDepositStore_CreditIfAbsent_Concurrent(t *testing.T) {
	store := NewDepositStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	appliedCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := store.CreditIfAbsent(ctx, "racekey", "order1", big.NewInt(7), "0xbbb")
			if err != nil {
				t.Errorf("CreditIfAbsent failed: %v", err)
				return
			}
			appliedCount <- applied
		}()
	}
	wg.Wait()
	close(appliedCount)

	wins := 0
	for applied := range appliedCount {
		if applied {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Exactly one concurrent credit should win, got %d", wins)
	}
}

func TestDepositStore_GetByDedupKey(t *testing.T) {
	store := NewDepositStore()
	ctx := context.Background()

	_, err := store.GetByDedupKey(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := store.CreditIfAbsent(ctx, "key2", "order2", big.NewInt(42), "0xccc"); err != nil {
		t.Fatalf("CreditIfAbsent failed: %v", err)
	}

	d, err := store.GetByDedupKey(ctx, "key2")
	if err != nil {
		t.Fatalf("GetByDedupKey failed: %v", err)
	}
	if d.OrderID != "order2" || d.TxHash != "0xccc" {
		t.Errorf("Unexpected deposit: %+v", d)
	}
	if d.Amount.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("Expected amount 42, got %s", d.Amount)
	}

	// Returned record is a copy; mutating it must not affect the store
	d.Amount.SetInt64(999)
	d2, err := store.GetByDedupKey(ctx, "key2")
	if err != nil {
		t.Fatalf("GetByDedupKey failed: %v", err)
	}
	if d2.Amount.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("Store mutated through returned copy: %s", d2.Amount)
	}
}

func TestDepositStore_InvalidInput(t *testing.T) {
	store := NewDepositStore()
	ctx := context.Background()

	if _, err := store.CreditIfAbsent(ctx, "", "order", big.NewInt(1), "0x1"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty key, got %v", err)
	}
	if _, err := store.CreditIfAbsent(ctx, "k", "order", nil, "0x1"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil amount, got %v", err)
	}
}
