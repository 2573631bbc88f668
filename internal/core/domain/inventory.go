package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// InventoryPatch carries the optional fields of an item update. A nil field
// keeps the current value, a non-nil one replaces it (zero values included).
type InventoryPatch struct {
	Name     *string
	Price    *decimal.Decimal
	Quantity *int
}

func (p InventoryPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Quantity == nil
}

// Merge copies the non-nil fields of the patch into item.
func (p InventoryPatch) Merge(item *InventoryItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
}

// Apply merges the patch into item and validates the result.
func (p InventoryPatch) Apply(item *InventoryItem) error {
	p.Merge(item)
	return item.Validate()
}

func (i InventoryItem) Validate() error {
	if i.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if i.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if i.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return nil
}
