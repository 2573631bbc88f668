package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

// Money renders a decimal as a JSON number rather than decimal's default
// quoted string.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).String()), nil
}

type ItemResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     Money     `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BillResponse struct {
	ID           string            `json:"id"`
	CustomerName string            `json:"customerName"`
	Date         time.Time         `json:"date"`
	TotalAmount  Money             `json:"totalAmount"`
	Items        []domain.LineItem `json:"items"`
}

func toItemResponse(item domain.InventoryItem) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Price:     Money(item.Price),
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toItemResponses(items []domain.InventoryItem) []ItemResponse {
	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	return resp
}

func toBillResponse(bill domain.Bill) BillResponse {
	items := bill.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return BillResponse{
		ID:           bill.ID,
		CustomerName: bill.CustomerName,
		Date:         bill.Date,
		TotalAmount:  Money(bill.TotalAmount),
		Items:        items,
	}
}

func toBillResponses(bills []domain.Bill) []BillResponse {
	resp := make([]BillResponse, 0, len(bills))
	for _, bill := range bills {
		resp = append(resp, toBillResponse(bill))
	}
	return resp
}
