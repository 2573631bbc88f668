package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

// runStoreContract exercises the behavior every port.Store must share. IDs
// are random so the suite can run against a long-lived database.
func runStoreContract(t *testing.T, store port.Store) {
	t.Run("ItemRoundTrip", func(t *testing.T) { testItemRoundTrip(t, store) })
	t.Run("ItemNotFound", func(t *testing.T) { testItemNotFound(t, store) })
	t.Run("UpdateItem", func(t *testing.T) { testUpdateItem(t, store) })
	t.Run("PatchItem", func(t *testing.T) { testPatchItem(t, store) })
	t.Run("DecrementStock", func(t *testing.T) { testDecrementStock(t, store) })
	t.Run("DecrementStockConcurrent", func(t *testing.T) { testDecrementStockConcurrent(t, store) })
	t.Run("IncrementStock", func(t *testing.T) { testIncrementStock(t, store) })
	t.Run("BillRoundTrip", func(t *testing.T) { testBillRoundTrip(t, store) })
	t.Run("UpdateBill", func(t *testing.T) { testUpdateBill(t, store) })
	t.Run("DeleteBill", func(t *testing.T) { testDeleteBill(t, store) })
}

func newTestItem(name string, price string, quantity int) domain.InventoryItem {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.InventoryItem{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func mustCreateItem(t *testing.T, store port.Store, item domain.InventoryItem) {
	t.Helper()
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	t.Cleanup(func() { store.DeleteItem(context.Background(), item.ID) })
}

func mustStock(t *testing.T, store port.Store, id string) int {
	t.Helper()
	item, err := store.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item.Quantity
}

func testItemRoundTrip(t *testing.T, store port.Store) {
	ctx := context.Background()
	item := newTestItem("Apple", "1.25", 100)
	mustCreateItem(t, store, item)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.Name != "Apple" || got.Quantity != 100 {
		t.Errorf("unexpected item: %+v", got)
	}
	if !got.Price.Equal(item.Price) {
		t.Errorf("expected price %s, got %s", item.Price, got.Price)
	}

	items, err := store.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	found := false
	for _, it := range items {
		if it.ID == item.ID {
			found = true
		}
	}
	if !found {
		t.Error("created item missing from list")
	}
}

func testItemNotFound(t *testing.T, store port.Store) {
	ctx := context.Background()
	missing := uuid.New().String()

	got, err := store.GetItem(ctx, missing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent item")
	}

	if err := store.DeleteItem(ctx, missing); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
	if err := store.UpdateItem(ctx, domain.InventoryItem{ID: missing, Name: "x"}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
	name := "x"
	if _, err := store.PatchItem(ctx, missing, domain.InventoryPatch{Name: &name}, time.Now().UTC()); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
}

func testUpdateItem(t *testing.T, store port.Store) {
	ctx := context.Background()
	item := newTestItem("Bread", "2", 10)
	mustCreateItem(t, store, item)

	// Writing identical values is not a missing row
	if err := store.UpdateItem(ctx, item); err != nil {
		t.Fatalf("no-op UpdateItem failed: %v", err)
	}

	item.Name = "Rye Bread"
	item.Price = decimal.RequireFromString("2.75")
	item.Quantity = 0
	if err := store.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Name != "Rye Bread" || got.Quantity != 0 || !got.Price.Equal(item.Price) {
		t.Errorf("update not applied: %+v", got)
	}
}

func testPatchItem(t *testing.T, store port.Store) {
	ctx := context.Background()
	item := newTestItem("Tea", "3.5", 10)
	mustCreateItem(t, store, item)

	// Stock sold after the caller read the item must survive a rename
	if ok, err := store.DecrementStock(ctx, item.ID, 4); err != nil || !ok {
		t.Fatalf("DecrementStock failed: ok=%v err=%v", ok, err)
	}

	name := "Green Tea"
	got, err := store.PatchItem(ctx, item.ID, domain.InventoryPatch{Name: &name}, time.Now().UTC())
	if err != nil {
		t.Fatalf("PatchItem failed: %v", err)
	}
	if got.Name != "Green Tea" || got.Quantity != 6 || !got.Price.Equal(item.Price) {
		t.Errorf("unexpected patched item: %+v", got)
	}

	price := decimal.RequireFromString("4")
	quantity := 0
	if _, err := store.PatchItem(ctx, item.ID, domain.InventoryPatch{Price: &price, Quantity: &quantity}, time.Now().UTC()); err != nil {
		t.Fatalf("PatchItem failed: %v", err)
	}

	stored, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if stored.Name != "Green Tea" || stored.Quantity != 0 || !stored.Price.Equal(price) {
		t.Errorf("patch not applied: %+v", stored)
	}
}

func testDecrementStock(t *testing.T, store port.Store) {
	ctx := context.Background()
	item := newTestItem("Milk", "0.99", 5)
	mustCreateItem(t, store, item)

	ok, err := store.DecrementStock(ctx, item.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected success")
	}
	if stock := mustStock(t, store, item.ID); stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}

	// Try to decrement more than available
	ok, err = store.DecrementStock(ctx, item.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure due to insufficient stock")
	}
	if stock := mustStock(t, store, item.ID); stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}

	ok, err = store.DecrementStock(ctx, uuid.New().String(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure for nonexistent item")
	}
}

func testDecrementStockConcurrent(t *testing.T, store port.Store) {
	ctx := context.Background()
	initialStock := 20
	totalRequests := 50

	item := newTestItem("Contested", "1", initialStock)
	mustCreateItem(t, store, item)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.DecrementStock(ctx, item.ID, 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if stock := mustStock(t, store, item.ID); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func testIncrementStock(t *testing.T, store port.Store) {
	ctx := context.Background()
	item := newTestItem("Eggs", "3", 5)
	mustCreateItem(t, store, item)

	if err := store.IncrementStock(ctx, item.ID, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock := mustStock(t, store, item.ID); stock != 8 {
		t.Errorf("expected stock 8, got %d", stock)
	}

	if err := store.IncrementStock(ctx, uuid.New().String(), 1); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got: %v", err)
	}
}

func newTestBill(customer string, items ...domain.LineItem) domain.Bill {
	return domain.Bill{
		ID:           uuid.New().String(),
		CustomerName: customer,
		Date:         time.Now().UTC().Truncate(time.Millisecond),
		TotalAmount:  decimal.RequireFromString("12.50"),
		Items:        items,
	}
}

func mustCreateBill(t *testing.T, store port.Store, bill domain.Bill) {
	t.Helper()
	if err := store.CreateBill(context.Background(), bill); err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}
	t.Cleanup(func() { store.DeleteBill(context.Background(), bill.ID) })
}

func testBillRoundTrip(t *testing.T, store port.Store) {
	ctx := context.Background()
	bill := newTestBill("John Doe",
		domain.LineItem{ItemID: "b", Quantity: 2},
		domain.LineItem{ItemID: "a", Quantity: 1},
	)
	mustCreateBill(t, store, bill)

	got, err := store.GetBill(ctx, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected bill, got nil")
	}
	if got.CustomerName != "John Doe" || !got.TotalAmount.Equal(bill.TotalAmount) {
		t.Errorf("unexpected bill: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0].ItemID != "b" || got.Items[1].ItemID != "a" {
		t.Errorf("expected line items in order, got %+v", got.Items)
	}
	if !got.Date.Equal(bill.Date) {
		t.Errorf("expected date %v, got %v", bill.Date, got.Date)
	}

	bills, err := store.ListBills(ctx)
	if err != nil {
		t.Fatalf("ListBills failed: %v", err)
	}
	found := false
	for _, b := range bills {
		if b.ID == bill.ID {
			found = len(b.Items) == 2
		}
	}
	if !found {
		t.Error("created bill missing from list or lost its lines")
	}

	missing, err := store.GetBill(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent bill")
	}
}

func testUpdateBill(t *testing.T, store port.Store) {
	ctx := context.Background()
	bill := newTestBill("John", domain.LineItem{ItemID: "a", Quantity: 1})
	mustCreateBill(t, store, bill)

	err := store.UpdateBill(ctx, bill.ID, domain.BillUpdate{
		CustomerName: "Jane",
		Items:        []domain.LineItem{{ItemID: "c", Quantity: 4}, {ItemID: "d", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateBill failed: %v", err)
	}

	got, err := store.GetBill(ctx, bill.ID)
	if err != nil {
		t.Fatalf("GetBill failed: %v", err)
	}
	if got.CustomerName != "Jane" || len(got.Items) != 2 || got.Items[0].ItemID != "c" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.TotalAmount.Equal(bill.TotalAmount) {
		t.Errorf("expected total unchanged %s, got %s", bill.TotalAmount, got.TotalAmount)
	}

	err = store.UpdateBill(ctx, uuid.New().String(), domain.BillUpdate{CustomerName: "x"})
	if !errors.Is(err, domain.ErrBillNotFound) {
		t.Errorf("expected ErrBillNotFound, got: %v", err)
	}
}

func testDeleteBill(t *testing.T, store port.Store) {
	ctx := context.Background()
	bill := newTestBill("John", domain.LineItem{ItemID: "a", Quantity: 1})
	if err := store.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	if err := store.DeleteBill(ctx, bill.ID); err != nil {
		t.Fatalf("DeleteBill failed: %v", err)
	}
	if err := store.DeleteBill(ctx, bill.ID); !errors.Is(err, domain.ErrBillNotFound) {
		t.Errorf("expected ErrBillNotFound, got: %v", err)
	}
}
