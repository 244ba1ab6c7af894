package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"fieldops/internal/inventory"
	"fieldops/internal/models"
)

// InventoryStore is the pgx-backed store for inventory items and the usage
// ledger. It implements inventory.Store.
type InventoryStore struct {
	db *DB
}

func NewInventoryStore(db *DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// InTx runs fn inside one database transaction. Row locks taken by
// StockForUpdate hold until commit or rollback, which serializes concurrent
// usage batches touching the same items.
func (s *InventoryStore) InTx(ctx context.Context, fn func(tx inventory.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&inventoryTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type inventoryTx struct {
	tx pgx.Tx
}

func (t *inventoryTx) StockForUpdate(ctx context.Context, itemID int) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx,
		"SELECT current_stock FROM inventory_items WHERE id = $1 FOR UPDATE",
		itemID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &inventory.ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (t *inventoryTx) InsertUsage(ctx context.Context, taskID, itemID, quantity, usedBy int) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO inventory_usage (task_id, item_id, quantity_used, used_by)
		 VALUES ($1, $2, $3, $4)`,
		taskID, itemID, quantity, usedBy)
	return err
}

func (t *inventoryTx) DecrementStock(ctx context.Context, itemID, quantity int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE inventory_items
		 SET current_stock = current_stock - $1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2`,
		quantity, itemID)
	return err
}

func (s *InventoryStore) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	return s.queryItems(ctx,
		`SELECT id, name, category, unit, current_stock, created_at, updated_at
		 FROM inventory_items ORDER BY name`)
}

func (s *InventoryStore) ItemsByCategory(ctx context.Context, category string) ([]models.InventoryItem, error) {
	return s.queryItems(ctx,
		`SELECT id, name, category, unit, current_stock, created_at, updated_at
		 FROM inventory_items WHERE category = $1 ORDER BY name`,
		category)
}

func (s *InventoryStore) queryItems(ctx context.Context, query string, args ...any) ([]models.InventoryItem, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		var item models.InventoryItem
		err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Unit,
			&item.CurrentStock, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, rows.Err()
}

func (s *InventoryStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		"SELECT DISTINCT category FROM inventory_items ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, rows.Err()
}

func (s *InventoryStore) AddItem(ctx context.Context, req models.CreateItemRequest) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.QueryRow(ctx,
		`INSERT INTO inventory_items (name, category, unit, current_stock)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, category, unit, current_stock, created_at, updated_at`,
		req.Name, req.Category, req.Unit, req.CurrentStock).Scan(
		&item.ID, &item.Name, &item.Category, &item.Unit,
		&item.CurrentStock, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *InventoryStore) UpdateItem(ctx context.Context, itemID int, req models.UpdateItemRequest) (bool, error) {
	result, err := s.db.Exec(ctx,
		`UPDATE inventory_items
		 SET name = $1, category = $2, unit = $3, current_stock = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5`,
		req.Name, req.Category, req.Unit, req.CurrentStock, itemID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (s *InventoryStore) DeleteItem(ctx context.Context, itemID int) (bool, error) {
	result, err := s.db.Exec(ctx,
		"DELETE FROM inventory_items WHERE id = $1", itemID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (s *InventoryStore) UsageByItem(ctx context.Context, itemID int) ([]models.UsageRecord, error) {
	return s.queryUsage(ctx,
		`SELECT iu.id, iu.task_id, iu.item_id, iu.quantity_used, iu.used_by, iu.usage_date,
		        ii.name, ii.unit, u.username
		 FROM inventory_usage iu
		 JOIN inventory_items ii ON iu.item_id = ii.id
		 JOIN users u ON iu.used_by = u.id
		 WHERE iu.item_id = $1
		 ORDER BY iu.usage_date DESC`,
		itemID)
}

func (s *InventoryStore) UsageByTask(ctx context.Context, taskID int) ([]models.UsageRecord, error) {
	return s.queryUsage(ctx,
		`SELECT iu.id, iu.task_id, iu.item_id, iu.quantity_used, iu.used_by, iu.usage_date,
		        ii.name, ii.unit, u.username
		 FROM inventory_usage iu
		 JOIN inventory_items ii ON iu.item_id = ii.id
		 JOIN users u ON iu.used_by = u.id
		 WHERE iu.task_id = $1
		 ORDER BY iu.usage_date DESC`,
		taskID)
}

func (s *InventoryStore) queryUsage(ctx context.Context, query string, args ...any) ([]models.UsageRecord, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		err := rows.Scan(&r.ID, &r.TaskID, &r.ItemID, &r.QuantityUsed, &r.UsedBy, &r.UsageDate,
			&r.ItemName, &r.Unit, &r.UsedByName)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if records == nil {
		records = []models.UsageRecord{}
	}
	return records, rows.Err()
}
