package port

import (
	"context"
	"time"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

type InventoryRepository interface {
	// CreateItem persists a new inventory item
	CreateItem(ctx context.Context, item domain.InventoryItem) error

	// GetItem retrieves an item by ID, returns nil if it does not exist
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)

	// ListItems returns every item ordered by creation time
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)

	// UpdateItem overwrites name, price and quantity, returns domain.ErrItemNotFound if missing
	UpdateItem(ctx context.Context, item domain.InventoryItem) error

	// PatchItem writes only the non-nil fields of patch and returns the stored
	// item, returns domain.ErrItemNotFound if missing
	PatchItem(ctx context.Context, id string, patch domain.InventoryPatch, updatedAt time.Time) (*domain.InventoryItem, error)

	// DeleteItem removes an item, returns domain.ErrItemNotFound if missing
	DeleteItem(ctx context.Context, id string) error

	// DecrementStock atomically decreases quantity, returns false if missing or insufficient
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, id string, quantity int) error
}
