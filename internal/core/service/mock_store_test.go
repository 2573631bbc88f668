package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

var errStoreDown = errors.New("store down")

// Mock store implementing InventoryRepository and BillRepository
type mockStore struct {
	mu    sync.Mutex
	items map[string]domain.InventoryItem
	bills map[string]domain.Bill

	failGet        bool
	failDecrement  bool
	failCreateBill bool
	// failDecrementFor makes DecrementStock return a store error for the item
	failDecrementFor string
	// refuseDecrement makes DecrementStock report insufficient stock for the item
	refuseDecrement string
	// beforePatch runs inside PatchItem before the write
	beforePatch func()
}

func newMockStore() *mockStore {
	return &mockStore{
		items: make(map[string]domain.InventoryItem),
		bills: make(map[string]domain.Bill),
	}
}

func (m *mockStore) seed(id, name string, price float64, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = domain.InventoryItem{
		ID:        id,
		Name:      name,
		Price:     decimal.NewFromFloat(price),
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
}

func (m *mockStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Quantity
}

func (m *mockStore) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bills)
}

func (m *mockStore) CreateItem(ctx context.Context, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *mockStore) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *mockStore) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *mockStore) UpdateItem(ctx context.Context, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return domain.ErrItemNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockStore) PatchItem(ctx context.Context, id string, patch domain.InventoryPatch, updatedAt time.Time) (*domain.InventoryItem, error) {
	if m.beforePatch != nil {
		m.beforePatch()
	}

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

func (m *mockStore) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockStore) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDecrement || id == m.failDecrementFor {
		return false, errStoreDown
	}
	if id == m.refuseDecrement {
		return false, nil
	}
	item, ok := m.items[id]
	if !ok || item.Quantity < quantity {
		return false, nil
	}
	item.Quantity -= quantity
	m.items[id] = item
	return true, nil
}

func (m *mockStore) IncrementStock(ctx context.Context, id string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	item.Quantity += quantity
	m.items[id] = item
	return nil
}

func (m *mockStore) CreateBill(ctx context.Context, bill domain.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateBill {
		return errStoreDown
	}
	m.bills[bill.ID] = bill
	return nil
}

func (m *mockStore) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	return &bill, nil
}

func (m *mockStore) ListBills(ctx context.Context) ([]domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bills := make([]domain.Bill, 0, len(m.bills))
	for _, bill := range m.bills {
		bills = append(bills, bill)
	}
	return bills, nil
}

func (m *mockStore) UpdateBill(ctx context.Context, id string, update domain.BillUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[id]
	if !ok {
		return domain.ErrBillNotFound
	}
	bill.CustomerName = update.CustomerName
	bill.Items = update.Items
	m.bills[id] = bill
	return nil
}

func (m *mockStore) DeleteBill(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return domain.ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []BillEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, value.(BillEvent))
	return nil
}

func (m *mockPublisher) Close() error { return nil }
