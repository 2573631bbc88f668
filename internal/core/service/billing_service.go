package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

const (
	idempotencyKeyPrefix  = "idempotency:bill:"
	defaultIdempotencyTTL = 24 * time.Hour
)

var tracer = otel.Tracer("github.com/rl1809/shop-billing/internal/core/service")

type BillingService struct {
	inventory   port.InventoryRepository
	bills       port.BillRepository
	locker      port.StockLocker
	idempotency port.IdempotencyRepository
	events      port.EventPublisher
	mode        Consistency
	idemTTL     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

type BillingOption func(*BillingService)

func WithConsistency(mode Consistency) BillingOption {
	return func(s *BillingService) { s.mode = mode }
}

func WithStockLocker(locker port.StockLocker) BillingOption {
	return func(s *BillingService) { s.locker = locker }
}

func WithIdempotency(repo port.IdempotencyRepository, ttl time.Duration) BillingOption {
	return func(s *BillingService) {
		s.idempotency = repo
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

func WithEventPublisher(events port.EventPublisher) BillingOption {
	return func(s *BillingService) { s.events = events }
}

func WithClock(now func() time.Time) BillingOption {
	return func(s *BillingService) { s.now = now }
}

func NewBillingService(inventory port.InventoryRepository, bills port.BillRepository, logger *zap.Logger, opts ...BillingOption) *BillingService {
	s := &BillingService{
		inventory: inventory,
		bills:     bills,
		mode:      ConsistencyLocked,
		idemTTL:   defaultIdempotencyTTL,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *BillingService) Consistency() Consistency {
	return s.mode
}

// CreateBill deducts stock for every line item in order and persists a bill
// priced at the deduction-time prices.
func (s *BillingService) CreateBill(ctx context.Context, customerName string, items []domain.LineItem) (*domain.Bill, error) {
	bill, _, err := s.tracedCreateBill(ctx, customerName, items)
	return bill, err
}

// tracedCreateBill also reports whether any stock was left deducted, which
// holds for a successful bill and for failures after the first deduction.
func (s *BillingService) tracedCreateBill(ctx context.Context, customerName string, items []domain.LineItem) (*domain.Bill, bool, error) {
	ctx, span := tracer.Start(ctx, "BillingService.CreateBill", trace.WithAttributes(
		attribute.String("billing.consistency", string(s.mode)),
		attribute.Int("billing.lines", len(items)),
	))
	defer span.End()

	bill, deducted, err := s.createBill(ctx, customerName, items)
	span.SetAttributes(attribute.Bool("billing.deducted", deducted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, deducted, err
	}
	span.SetAttributes(attribute.String("billing.bill_id", bill.ID))
	return bill, deducted, nil
}

func (s *BillingService) createBill(ctx context.Context, customerName string, items []domain.LineItem) (*domain.Bill, bool, error) {
	if err := domain.ValidateBillInput(customerName, items); err != nil {
		return nil, false, err
	}

	var (
		total    decimal.Decimal
		deducted bool
		err      error
	)
	switch s.mode {
	case ConsistencyLegacy:
		total, deducted, err = s.deductLegacy(ctx, items)
	case ConsistencyConditional:
		total, deducted, err = s.deductConditional(ctx, items)
	default:
		total, deducted, err = s.deductLocked(ctx, items)
	}
	if err != nil {
		return nil, deducted, err
	}

	bill := domain.Bill{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Date:         s.now().UTC(),
		TotalAmount:  total,
		Items:        domain.CloneLineItems(items),
	}
	if err := s.bills.CreateBill(ctx, bill); err != nil {
		return nil, true, &domain.PersistenceError{Op: "create bill", Err: err}
	}

	s.logger.Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("customer", bill.CustomerName),
		zap.Int("lines", len(bill.Items)),
		zap.String("total", bill.TotalAmount.String()),
	)
	s.publish(ctx, EventBillCreated, bill.ID, &bill)

	return &bill, true, nil
}

// CreateBillOnce runs CreateBill at most once per idempotency key. A failure
// that left no stock deducted releases the key so a retry runs again, as do
// validation and stock failures. The key is kept once stock was consumed.
func (s *BillingService) CreateBillOnce(ctx context.Context, key, customerName string, items []domain.LineItem) (*domain.Bill, error) {
	if key == "" || s.idempotency == nil {
		return s.CreateBill(ctx, customerName, items)
	}

	idemKey := idempotencyKeyPrefix + key
	ok, err := s.idempotency.SetIdempotency(ctx, idemKey, s.idemTTL)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "idempotency check", Err: err}
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	bill, deducted, err := s.tracedCreateBill(ctx, customerName, items)
	if err != nil && (!deducted || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInsufficientStock)) {
		if rerr := s.idempotency.ReleaseIdempotency(ctx, idemKey); rerr != nil {
			s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
	}
	return bill, err
}

func (s *BillingService) deductLegacy(ctx context.Context, items []domain.LineItem) (decimal.Decimal, bool, error) {
	total := decimal.Zero
	deducted := false
	for _, li := range items {
		item, err := s.lookup(ctx, li.ItemID)
		if err != nil {
			return decimal.Zero, deducted, err
		}
		if item == nil || item.Quantity < li.Quantity {
			return decimal.Zero, deducted, insufficientStock(item)
		}

		item.Quantity -= li.Quantity
		item.UpdatedAt = s.now().UTC()
		if err := s.inventory.UpdateItem(ctx, *item); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return decimal.Zero, deducted, insufficientStock(nil)
			}
			return decimal.Zero, deducted, &domain.PersistenceError{Op: "update item", Err: err}
		}
		deducted = true
		total = total.Add(lineTotal(item.Price, li.Quantity))
	}
	return total, deducted, nil
}

func (s *BillingService) deductConditional(ctx context.Context, items []domain.LineItem) (decimal.Decimal, bool, error) {
	total := decimal.Zero
	deducted := false
	for _, li := range items {
		item, err := s.lookup(ctx, li.ItemID)
		if err != nil {
			return decimal.Zero, deducted, err
		}
		if item == nil {
			return decimal.Zero, deducted, insufficientStock(nil)
		}

		ok, err := s.inventory.DecrementStock(ctx, li.ItemID, li.Quantity)
		if err != nil {
			return decimal.Zero, deducted, &domain.PersistenceError{Op: "decrement stock", Err: err}
		}
		if !ok {
			return decimal.Zero, deducted, insufficientStock(item)
		}
		deducted = true
		total = total.Add(lineTotal(item.Price, li.Quantity))
	}
	return total, deducted, nil
}

// deductLocked validates every line before deducting any, and puts back what
// it deducted when a later deduction fails, so a failed bill consumes nothing.
func (s *BillingService) deductLocked(ctx context.Context, items []domain.LineItem) (decimal.Decimal, bool, error) {
	unlock, err := s.lockItems(ctx, items)
	if err != nil {
		return decimal.Zero, false, err
	}
	defer unlock()

	// Validate every line against the stock left by the lines before it.
	total := decimal.Zero
	seen := make(map[string]*domain.InventoryItem)
	remaining := make(map[string]int)
	for _, li := range items {
		item, ok := seen[li.ItemID]
		if !ok {
			item, err = s.lookup(ctx, li.ItemID)
			if err != nil {
				return decimal.Zero, false, err
			}
			seen[li.ItemID] = item
			if item != nil {
				remaining[li.ItemID] = item.Quantity
			}
		}
		if item == nil || remaining[li.ItemID] < li.Quantity {
			return decimal.Zero, false, insufficientStock(item)
		}
		remaining[li.ItemID] -= li.Quantity
		total = total.Add(lineTotal(item.Price, li.Quantity))
	}

	applied := make([]domain.LineItem, 0, len(items))
	for _, li := range items {
		ok, err := s.inventory.DecrementStock(ctx, li.ItemID, li.Quantity)
		if err != nil {
			return decimal.Zero, !s.restore(ctx, applied), &domain.PersistenceError{Op: "decrement stock", Err: err}
		}
		if !ok {
			// Stock changed outside the lock (direct inventory edit).
			return decimal.Zero, !s.restore(ctx, applied), insufficientStock(seen[li.ItemID])
		}
		applied = append(applied, li)
	}
	return total, true, nil
}

// lockItems locks each distinct item in sorted order so that two bills
// sharing items cannot deadlock.
func (s *BillingService) lockItems(ctx context.Context, items []domain.LineItem) (func(), error) {
	ids := make([]string, 0, len(items))
	dedup := make(map[string]struct{}, len(items))
	for _, li := range items {
		if _, ok := dedup[li.ItemID]; ok {
			continue
		}
		dedup[li.ItemID] = struct{}{}
		ids = append(ids, li.ItemID)
	}
	sort.Strings(ids)

	releases := make([]func(), 0, len(ids))
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range ids {
		release, err := s.locker.Lock(ctx, id)
		if err != nil {
			unlockAll()
			return nil, &domain.PersistenceError{Op: "lock item " + id, Err: err}
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

// restore puts back the applied deductions and reports whether all of them
// were restored.
func (s *BillingService) restore(ctx context.Context, applied []domain.LineItem) bool {
	restored := true
	for _, li := range applied {
		if err := s.inventory.IncrementStock(ctx, li.ItemID, li.Quantity); err != nil {
			s.logger.Error("CRITICAL: stock rollback failed",
				zap.String("item_id", li.ItemID),
				zap.Int("quantity", li.Quantity),
				zap.Error(err),
			)
			restored = false
			continue
		}
		s.logger.Info("rolled back stock", zap.String("item_id", li.ItemID), zap.Int("quantity", li.Quantity))
	}
	return restored
}

func (s *BillingService) lookup(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := s.inventory.GetItem(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get item", Err: err}
	}
	return item, nil
}

func (s *BillingService) ListBills(ctx context.Context) ([]domain.Bill, error) {
	bills, err := s.bills.ListBills(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list bills", Err: err}
	}
	return bills, nil
}

func (s *BillingService) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := s.bills.GetBill(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get bill", Err: err}
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

// UpdateBill replaces customer and line items. Stock is neither re-validated
// nor adjusted and the total keeps its creation-time value.
func (s *BillingService) UpdateBill(ctx context.Context, id string, update domain.BillUpdate) (*domain.Bill, error) {
	if err := domain.ValidateBillInput(update.CustomerName, update.Items); err != nil {
		return nil, err
	}

	update.Items = domain.CloneLineItems(update.Items)
	if err := s.bills.UpdateBill(ctx, id, update); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBillNotFound
		}
		return nil, &domain.PersistenceError{Op: "update bill", Err: err}
	}

	bill, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventBillUpdated, bill.ID, bill)
	return bill, nil
}

// DeleteBill removes a bill without restoring the stock it consumed.
func (s *BillingService) DeleteBill(ctx context.Context, id string) error {
	if err := s.bills.DeleteBill(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrBillNotFound
		}
		return &domain.PersistenceError{Op: "delete bill", Err: err}
	}
	s.publish(ctx, EventBillDeleted, id, nil)
	return nil
}

func insufficientStock(item *domain.InventoryItem) error {
	if item == nil {
		return &domain.InsufficientStockError{ItemName: domain.UnknownItemName}
	}
	return &domain.InsufficientStockError{ItemName: item.Name}
}

func lineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
