package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/adapter/storage"
	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/core/service"
)

func main() {
	mode := flag.String("mode", "locked", "stock consistency: legacy, conditional or locked")
	initialStock := flag.Int("stock", 20, "initial stock of the contested item")
	totalRequests := flag.Int("requests", 50, "number of concurrent single-unit bills")
	flag.Parse()

	consistency, err := service.ParseConsistency(*mode)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}

	ctx := context.Background()
	store := storage.NewMemoryAdapter()

	inventoryService := service.NewInventoryService(store, zap.NewNop())
	item, err := inventoryService.CreateItem(ctx, "contested-item", decimal.NewFromFloat(9.99), *initialStock)
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	billingService := service.NewBillingService(store, store, zap.NewNop(), service.WithConsistency(consistency))

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			lines := []domain.LineItem{{ItemID: item.ID, Quantity: 1}}
			_, err := billingService.CreateBill(ctx, fmt.Sprintf("user-%d", userID), lines)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	final, err := inventoryService.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	bills, err := billingService.ListBills(ctx)
	if err != nil {
		log.Fatalf("failed to list bills: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Consistency:      %s\n", consistency)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Bills Stored:     %d\n", len(bills))
	fmt.Printf("Final Stock:      %d\n", final.Quantity)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := min(*initialStock, *totalRequests)
	if int(success) == expected && final.Quantity == *initialStock-expected {
		fmt.Printf("PASS: %d bills succeeded, stock never oversold\n", expected)
	} else {
		fmt.Printf("FAIL: expected %d successes and stock %d, got %d and %d\n",
			expected, *initialStock-expected, success, final.Quantity)
	}
}
