package port

import (
	"context"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

type BillRepository interface {
	// CreateBill persists a new bill together with its line items
	CreateBill(ctx context.Context, bill domain.Bill) error

	// GetBill retrieves a bill by ID, returns nil if it does not exist
	GetBill(ctx context.Context, id string) (*domain.Bill, error)

	// ListBills returns every bill ordered by date
	ListBills(ctx context.Context) ([]domain.Bill, error)

	// UpdateBill replaces customer name and line items, returns domain.ErrBillNotFound if missing
	UpdateBill(ctx context.Context, id string, update domain.BillUpdate) error

	// DeleteBill removes a bill, returns domain.ErrBillNotFound if missing
	DeleteBill(ctx context.Context, id string) error
}
