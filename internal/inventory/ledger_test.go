package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type usageRow struct {
	taskID   int
	itemID   int
	quantity int
	usedBy   int
}

// memStore implements Store with a single mutex held for the whole
// transaction, giving the serializable semantics the pgx store gets from row
// locks.
type memStore struct {
	mu    sync.Mutex
	stock map[int]int
	usage []usageRow
}

func newMemStore(stock map[int]int) *memStore {
	copied := make(map[int]int, len(stock))
	for id, qty := range stock {
		copied[id] = qty
	}
	return &memStore{stock: copied}
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{stock: make(map[int]int, len(s.stock))}
	for id, qty := range s.stock {
		tx.stock[id] = qty
	}

	if err := fn(tx); err != nil {
		return err // rollback: working copy is discarded
	}

	s.stock = tx.stock
	s.usage = append(s.usage, tx.usage...)
	return nil
}

type memTx struct {
	stock map[int]int
	usage []usageRow
}

func (t *memTx) StockForUpdate(_ context.Context, itemID int) (int, error) {
	stock, ok := t.stock[itemID]
	if !ok {
		return 0, &ItemNotFoundError{ItemID: itemID}
	}
	return stock, nil
}

func (t *memTx) InsertUsage(_ context.Context, taskID, itemID, quantity, usedBy int) error {
	t.usage = append(t.usage, usageRow{taskID: taskID, itemID: itemID, quantity: quantity, usedBy: usedBy})
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, itemID, quantity int) error {
	t.stock[itemID] -= quantity
	return nil
}

func newLedgerForTest(store Store) *Ledger {
	return NewLedger(store, zap.NewNop())
}

func TestRecordUsageRejectsEmptyBatch(t *testing.T) {
	ledger := newLedgerForTest(newMemStore(nil))

	err := ledger.RecordUsage(context.Background(), UsageBatch{TaskID: 1, UsedBy: 2})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestRecordUsageRejectsNonPositiveQuantity(t *testing.T) {
	store := newMemStore(map[int]int{1: 10})
	ledger := newLedgerForTest(store)

	err := ledger.RecordUsage(context.Background(), UsageBatch{
		TaskID: 1,
		UsedBy: 2,
		Lines:  []UsageLine{{ItemID: 1, Quantity: 0}},
	})

	var badQuantity *BadQuantityError
	require.ErrorAs(t, err, &badQuantity)
	assert.Equal(t, 1, badQuantity.ItemID)
	assert.Equal(t, 10, store.stock[1])
}

func TestRecordUsageUnknownItemAbortsBatch(t *testing.T) {
	store := newMemStore(map[int]int{1: 10})
	ledger := newLedgerForTest(store)

	err := ledger.RecordUsage(context.Background(), UsageBatch{
		TaskID: 1,
		UsedBy: 2,
		Lines: []UsageLine{
			{ItemID: 1, Quantity: 5},
			{ItemID: 99, Quantity: 1},
		},
	})

	var notFound *ItemNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 99, notFound.ItemID)

	// Nothing committed for the valid line either.
	assert.Equal(t, 10, store.stock[1])
	assert.Empty(t, store.usage)
}

func TestRecordUsageInsufficientStockAbortsBatch(t *testing.T) {
	store := newMemStore(map[int]int{1: 100, 2: 3})
	ledger := newLedgerForTest(store)

	err := ledger.RecordUsage(context.Background(), UsageBatch{
		TaskID: 7,
		UsedBy: 2,
		Lines: []UsageLine{
			{ItemID: 1, Quantity: 5},
			{ItemID: 2, Quantity: 5000},
		},
	})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.ItemID)
	assert.Equal(t, 5000, insufficient.Requested)
	assert.Equal(t, 3, insufficient.Available)

	assert.Equal(t, 100, store.stock[1])
	assert.Equal(t, 3, store.stock[2])
	assert.Empty(t, store.usage)
}

func TestRecordUsageCommitsAllLines(t *testing.T) {
	store := newMemStore(map[int]int{1: 100, 2: 50})
	ledger := newLedgerForTest(store)

	err := ledger.RecordUsage(context.Background(), UsageBatch{
		TaskID: 7,
		UsedBy: 3,
		Lines: []UsageLine{
			{ItemID: 1, Quantity: 10},
			{ItemID: 2, Quantity: 20},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 90, store.stock[1])
	assert.Equal(t, 30, store.stock[2])

	require.Len(t, store.usage, 2)
	assert.Equal(t, usageRow{taskID: 7, itemID: 1, quantity: 10, usedBy: 3}, store.usage[0])
	assert.Equal(t, usageRow{taskID: 7, itemID: 2, quantity: 20, usedBy: 3}, store.usage[1])
}

func TestRecordUsageDuplicateLinesValidatedAgainstAggregate(t *testing.T) {
	store := newMemStore(map[int]int{1: 100})
	ledger := newLedgerForTest(store)

	// Each line passes on its own; together they would overdraw.
	err := ledger.RecordUsage(context.Background(), UsageBatch{
		TaskID: 7,
		UsedBy: 3,
		Lines: []UsageLine{
			{ItemID: 1, Quantity: 60},
			{ItemID: 1, Quantity: 60},
		},
	})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 120, insufficient.Requested)
	assert.Equal(t, 100, store.stock[1])
	assert.Empty(t, store.usage)
}

func TestRecordUsageConservation(t *testing.T) {
	const initial = 100
	store := newMemStore(map[int]int{1: initial})
	ledger := newLedgerForTest(store)

	quantities := []int{10, 25, 5, 40}
	for _, qty := range quantities {
		err := ledger.RecordUsage(context.Background(), UsageBatch{
			TaskID: 1,
			UsedBy: 2,
			Lines:  []UsageLine{{ItemID: 1, Quantity: qty}},
		})
		require.NoError(t, err)
	}

	used := 0
	for _, row := range store.usage {
		used += row.quantity
	}
	assert.Equal(t, initial-used, store.stock[1])
}

func TestConcurrentBatchesSerialize(t *testing.T) {
	store := newMemStore(map[int]int{1: 100})
	ledger := newLedgerForTest(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.RecordUsage(context.Background(), UsageBatch{
				TaskID: i + 1,
				UsedBy: 2,
				Lines:  []UsageLine{{ItemID: 1, Quantity: 60}},
			})
		}(i)
	}
	wg.Wait()

	// Exactly one batch wins; the loser sees insufficient stock.
	var failures int
	for _, err := range errs {
		if err != nil {
			var insufficient *InsufficientStockError
			require.ErrorAs(t, err, &insufficient)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 40, store.stock[1])
	assert.GreaterOrEqual(t, store.stock[1], 0)
	require.Len(t, store.usage, 1)
}
