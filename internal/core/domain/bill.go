package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type Bill struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customerName"`
	Date         time.Time       `json:"date"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Items        []LineItem      `json:"items"`
}

// BillUpdate replaces a bill's customer and line items wholesale.
type BillUpdate struct {
	CustomerName string
	Items        []LineItem
}

// ValidateBillInput checks the shape of a bill request. Stock availability is
// not part of it.
func ValidateBillInput(customerName string, items []LineItem) error {
	if customerName == "" {
		return &ValidationError{Field: "customerName", Reason: "is required"}
	}
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, li := range items {
		if li.ItemID == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].itemId", i), Reason: "is required"}
		}
		if li.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be a positive integer"}
		}
	}
	return nil
}

// CloneLineItems returns a copy so a bill never shares its lines with the caller.
func CloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
