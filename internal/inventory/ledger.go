package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"fieldops/internal/models"
)

var ErrEmptyBatch = errors.New("usage batch contains no items")

// ItemNotFoundError names the line item that does not exist; the whole batch
// is rolled back.
type ItemNotFoundError struct {
	ItemID int
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("inventory item %d not found", e.ItemID)
}

// InsufficientStockError names the first line item whose requested quantity
// exceeds current stock; the whole batch is rolled back.
type InsufficientStockError struct {
	ItemID    int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for item %d: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// BadQuantityError rejects non-positive quantities, which would otherwise
// inflate stock through the decrement.
type BadQuantityError struct {
	ItemID   int
	Quantity int
}

func (e *BadQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for item %d", e.Quantity, e.ItemID)
}

// Tx is one transactional unit of work against the inventory tables.
// StockForUpdate must lock the item's row for the remainder of the
// transaction so that concurrent batches touching the same item serialize.
type Tx interface {
	StockForUpdate(ctx context.Context, itemID int) (int, error)
	InsertUsage(ctx context.Context, taskID, itemID, quantity, usedBy int) error
	DecrementStock(ctx context.Context, itemID, quantity int) error
}

// Store runs fn inside a transaction; any error from fn rolls the whole
// transaction back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type UsageLine struct {
	ItemID   int
	Quantity int
}

type UsageBatch struct {
	TaskID int
	UsedBy int
	Lines  []UsageLine
}

// Ledger applies stock-consuming usage batches atomically: every line is
// validated under row locks before any write, and either all usage records
// and stock decrements commit or none do.
type Ledger struct {
	store  Store
	logger *zap.Logger
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
	}
}

// RecordUsage validates and applies one usage batch as a single all-or-nothing
// unit of work.
func (l *Ledger) RecordUsage(ctx context.Context, batch UsageBatch) error {
	if len(batch.Lines) == 0 {
		return ErrEmptyBatch
	}
	for _, line := range batch.Lines {
		if line.Quantity <= 0 {
			return &BadQuantityError{ItemID: line.ItemID, Quantity: line.Quantity}
		}
	}

	// Lines for the same item must be validated against their aggregate,
	// or a batch could pass line-by-line yet jointly overdraw the item.
	required := make(map[int]int, len(batch.Lines))
	for _, line := range batch.Lines {
		required[line.ItemID] += line.Quantity
	}

	// Lock items in ascending id order so overlapping batches cannot
	// deadlock against each other.
	itemIDs := make([]int, 0, len(required))
	for itemID := range required {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Ints(itemIDs)

	err := l.store.InTx(ctx, func(tx Tx) error {
		for _, itemID := range itemIDs {
			stock, err := tx.StockForUpdate(ctx, itemID)
			if err != nil {
				return err
			}
			if required[itemID] > stock {
				return &InsufficientStockError{
					ItemID:    itemID,
					Requested: required[itemID],
					Available: stock,
				}
			}
		}

		// Every line validated; apply all writes.
		for _, line := range batch.Lines {
			if err := tx.InsertUsage(ctx, batch.TaskID, line.ItemID, line.Quantity, batch.UsedBy); err != nil {
				return fmt.Errorf("failed to record usage for item %d: %w", line.ItemID, err)
			}
			if err := tx.DecrementStock(ctx, line.ItemID, line.Quantity); err != nil {
				return fmt.Errorf("failed to update stock for item %d: %w", line.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("usage batch recorded",
		zap.Int("task_id", batch.TaskID),
		zap.Int("used_by", batch.UsedBy),
		zap.Int("lines", len(batch.Lines)))
	return nil
}

// BatchFromRequest converts the HTTP request shape into a batch.
func BatchFromRequest(req models.RecordUsageRequest) UsageBatch {
	lines := make([]UsageLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, UsageLine{ItemID: item.ItemID, Quantity: item.QuantityUsed})
	}
	return UsageBatch{TaskID: req.TaskID, UsedBy: req.UsedBy, Lines: lines}
}
