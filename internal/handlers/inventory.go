package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"fieldops/internal/database"
	"fieldops/internal/inventory"
	"fieldops/internal/models"
)

type InventoryHandler struct {
	store     *database.InventoryStore
	ledger    *inventory.Ledger
	validator *validator.Validate
}

func NewInventoryHandler(store *database.InventoryStore, ledger *inventory.Ledger) *InventoryHandler {
	return &InventoryHandler{
		store:     store,
		ledger:    ledger,
		validator: validator.New(),
	}
}

// GetItems lists inventory items, optionally filtered by category.
func (h *InventoryHandler) GetItems(c *gin.Context) {
	var items []models.InventoryItem
	var err error

	if category := c.Query("category"); category != "" {
		items, err = h.store.ItemsByCategory(c.Request.Context(), category)
	} else {
		items, err = h.store.ListItems(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query inventory items"})
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *InventoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.store.Categories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query categories"})
		return
	}

	c.JSON(http.StatusOK, categories)
}

func (h *InventoryHandler) AddItem(c *gin.Context) {
	var req models.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.store.AddItem(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add inventory item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added successfully",
		"item_id": item.ID,
		"data":    item,
	})
}

func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.store.UpdateItem(c.Request.Context(), itemID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inventory item"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item updated successfully"})
}

func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	ok, err := h.store.DeleteItem(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete inventory item"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

// RecordUsage applies a stock-consuming usage batch atomically: either every
// line item is recorded and decremented, or nothing changes.
func (h *InventoryHandler) RecordUsage(c *gin.Context) {
	var req models.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ledger.RecordUsage(c.Request.Context(), inventory.BatchFromRequest(req))
	if err != nil {
		var notFound *inventory.ItemNotFoundError
		var insufficient *inventory.InsufficientStockError
		var badQuantity *inventory.BadQuantityError

		switch {
		case errors.Is(err, inventory.ErrEmptyBatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No items provided"})
		case errors.As(err, &badQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": badQuantity.Error()})
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		case errors.As(err, &insufficient):
			c.JSON(http.StatusBadRequest, gin.H{"error": insufficient.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record usage"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Usage recorded successfully"})
}

func (h *InventoryHandler) GetUsageByItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	records, err := h.store.UsageByItem(c.Request.Context(), itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query usage history"})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *InventoryHandler) GetUsageByTask(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}

	records, err := h.store.UsageByTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query usage history"})
		return
	}

	c.JSON(http.StatusOK, records)
}
