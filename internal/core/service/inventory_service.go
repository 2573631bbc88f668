package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/core/domain"
	"github.com/rl1809/shop-billing/internal/port"
)

type InventoryService struct {
	repo   port.InventoryRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewInventoryService(repo port.InventoryRepository, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *InventoryService) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list items", Err: err}
	}
	return items, nil
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get item", Err: err}
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *InventoryService) CreateItem(ctx context.Context, name string, price decimal.Decimal, quantity int) (*domain.InventoryItem, error) {
	now := s.now().UTC()
	item := domain.InventoryItem{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, &domain.PersistenceError{Op: "create item", Err: err}
	}

	s.logger.Info("inventory item created",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Int("quantity", item.Quantity),
	)
	return &item, nil
}

// UpdateItem applies the provided fields of patch to the stored item.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, patch domain.InventoryPatch) (*domain.InventoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return item, nil
	}

	// Omitted fields are left to the store so a bill deducting stock in the
	// meantime is not overwritten.
	if err := patch.Apply(item); err != nil {
		return nil, err
	}

	updated, err := s.repo.PatchItem(ctx, id, patch, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, &domain.PersistenceError{Op: "update item", Err: err}
	}

	s.logger.Info("inventory item updated", zap.String("item_id", id), zap.Int("quantity", updated.Quantity))
	return updated, nil
}

func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrItemNotFound
		}
		return &domain.PersistenceError{Op: "delete item", Err: err}
	}
	s.logger.Info("inventory item deleted", zap.String("item_id", id))
	return nil
}
