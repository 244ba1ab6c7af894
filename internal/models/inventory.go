package models

import "time"

type InventoryItem struct {
	ID           int       `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Category     string    `json:"category" db:"category"`
	Unit         string    `json:"unit" db:"unit"`
	CurrentStock int       `json:"current_stock" db:"current_stock"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UsageRecord is an append-only ledger entry; one row per line item of a
// recorded usage batch.
type UsageRecord struct {
	ID           int       `json:"id" db:"id"`
	TaskID       int       `json:"task_id" db:"task_id"`
	ItemID       int       `json:"item_id" db:"item_id"`
	QuantityUsed int       `json:"quantity_used" db:"quantity_used"`
	UsedBy       int       `json:"used_by" db:"used_by"`
	UsageDate    time.Time `json:"usage_date" db:"usage_date"`

	// Joined fields (not always populated)
	ItemName   string `json:"item_name,omitempty"`
	Unit       string `json:"unit,omitempty"`
	UsedByName string `json:"used_by_name,omitempty"`
}

type CreateItemRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Category     string `json:"category" validate:"required"`
	Unit         string `json:"unit" validate:"required"`
	CurrentStock int    `json:"current_stock" validate:"min=0"`
}

type UpdateItemRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Category     string `json:"category" validate:"required"`
	Unit         string `json:"unit" validate:"required"`
	CurrentStock int    `json:"current_stock" validate:"min=0"`
}

type UsageLineRequest struct {
	ItemID       int `json:"item_id" validate:"required"`
	QuantityUsed int `json:"quantity_used" validate:"required"`
}

type RecordUsageRequest struct {
	TaskID int                `json:"task_id" validate:"required"`
	Items  []UsageLineRequest `json:"items" validate:"required,min=1,dive"`
	UsedBy int                `json:"used_by" validate:"required"`
}
