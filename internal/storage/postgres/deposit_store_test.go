package postgres

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-reconciler/internal/storage"
)

func TestDepositStore_CreditIfAbsent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)
	ctx := context.Background()

	amount := big.NewInt(5_021_000_000)

	applied, err := store.CreditIfAbsent(ctx, "dedup-001", "order-001", amount, "0xabc")
	require.NoError(t, err)
	assert.True(t, applied, "first credit must apply")

	applied, err = store.CreditIfAbsent(ctx, "dedup-001", "order-001", amount, "0xabc")
	require.NoError(t, err)
	assert.False(t, applied, "repeated credit must be a no-op")

	deposit, err := store.GetByDedupKey(ctx, "dedup-001")
	require.NoError(t, err)
	assert.Equal(t, "dedup-001", deposit.DedupKey)
	assert.Equal(t, "order-001", deposit.OrderID)
	assert.Equal(t, "0xabc", deposit.TxHash)
	assert.Zero(t, deposit.Amount.Cmp(amount))
	assert.NotZero(t, deposit.CreditedAt)
}

func TestDepositStore_CreditIfAbsentConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := store.CreditIfAbsent(ctx, "dedup-race", "order-001", big.NewInt(100), "0xrace")
			assert.NoError(t, err)
			results <- applied
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for applied := range results {
		if applied {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent credit must apply")
}

func TestDepositStore_LargeAmountRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)
	ctx := context.Background()

	// Larger than uint64: 2^200.
	amount := new(big.Int).Lsh(big.NewInt(1), 200)

	applied, err := store.CreditIfAbsent(ctx, "dedup-big", "order-001", amount, "0xbig")
	require.NoError(t, err)
	require.True(t, applied)

	deposit, err := store.GetByDedupKey(ctx, "dedup-big")
	require.NoError(t, err)
	assert.Zero(t, deposit.Amount.Cmp(amount), "amount must survive the numeric round trip")
}

func TestDepositStore_GetByOrderID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)
	ctx := context.Background()

	for i, key := range []string{"dedup-a", "dedup-b"} {
		applied, err := store.CreditIfAbsent(ctx, key, "order-multi", big.NewInt(int64(100+i)), "0x"+key)
		require.NoError(t, err)
		require.True(t, applied)
	}
	applied, err := store.CreditIfAbsent(ctx, "dedup-other", "order-other", big.NewInt(1), "0xother")
	require.NoError(t, err)
	require.True(t, applied)

	deposits, err := store.GetByOrderID(ctx, "order-multi")
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	for _, d := range deposits {
		assert.Equal(t, "order-multi", d.OrderID)
	}
}

func TestDepositStore_GetByDedupKeyNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)

	_, err := store.GetByDedupKey(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDepositStore_CreditIfAbsentInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDepositStore(pool)
	ctx := context.Background()

	_, err := store.CreditIfAbsent(ctx, "", "order-001", big.NewInt(1), "0xabc")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.CreditIfAbsent(ctx, "dedup-001", "", big.NewInt(1), "0xabc")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.CreditIfAbsent(ctx, "dedup-001", "order-001", nil, "0xabc")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
