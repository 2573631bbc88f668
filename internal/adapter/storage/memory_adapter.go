package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

var _ port.Store = (*MemoryAdapter)(nil)

// MemoryAdapter keeps inventory and bills in process memory.
type MemoryAdapter struct {
	mu    sync.RWMutex
	items map[string]domain.InventoryItem
	bills map[string]domain.Bill
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		items: make(map[string]domain.InventoryItem),
		bills: make(map[string]domain.Bill),
	}
}

func (m *MemoryAdapter) CreateItem(_ context.Context, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[item.ID] = item
	return nil
}

func (m *MemoryAdapter) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryAdapter) ListItems(_ context.Context) ([]domain.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (m *MemoryAdapter) UpdateItem(_ context.Context, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.items[item.ID]
	if !ok {
		return domain.ErrItemNotFound
	}
	current.Name = item.Name
	current.Price = item.Price
	current.Quantity = item.Quantity
	current.UpdatedAt = item.UpdatedAt
	m.items[item.ID] = current
	return nil
}

func (m *MemoryAdapter) PatchItem(_ context.Context, id string, patch domain.InventoryPatch, updatedAt time.Time) (*domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	patch.Merge(&item)
	item.UpdatedAt = updatedAt
	m.items[id] = item
	return &item, nil
}

func (m *MemoryAdapter) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryAdapter) DecrementStock(_ context.Context, id string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || item.Quantity < quantity {
		return false, nil
	}
	item.Quantity -= quantity
	item.UpdatedAt = time.Now().UTC()
	m.items[id] = item
	return true, nil
}

func (m *MemoryAdapter) IncrementStock(_ context.Context, id string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	item.Quantity += quantity
	item.UpdatedAt = time.Now().UTC()
	m.items[id] = item
	return nil
}

func (m *MemoryAdapter) CreateBill(_ context.Context, bill domain.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bill.Items = domain.CloneLineItems(bill.Items)
	m.bills[bill.ID] = bill
	return nil
}

func (m *MemoryAdapter) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bill, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	bill.Items = domain.CloneLineItems(bill.Items)
	return &bill, nil
}

func (m *MemoryAdapter) ListBills(_ context.Context) ([]domain.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(m.bills))
	for _, bill := range m.bills {
		bill.Items = domain.CloneLineItems(bill.Items)
		bills = append(bills, bill)
	}
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].Date.Equal(bills[j].Date) {
			return bills[i].ID < bills[j].ID
		}
		return bills[i].Date.Before(bills[j].Date)
	})
	return bills, nil
}

func (m *MemoryAdapter) UpdateBill(_ context.Context, id string, update domain.BillUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bill, ok := m.bills[id]
	if !ok {
		return domain.ErrBillNotFound
	}
	bill.CustomerName = update.CustomerName
	bill.Items = domain.CloneLineItems(update.Items)
	m.bills[id] = bill
	return nil
}

func (m *MemoryAdapter) DeleteBill(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bills[id]; !ok {
		return domain.ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

func (m *MemoryAdapter) Ping(context.Context) error { return nil }

func (m *MemoryAdapter) Close() error { return nil }
