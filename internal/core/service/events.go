package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/core/domain"
)

const (
	EventBillCreated = "bill.created"
	EventBillUpdated = "bill.updated"
	EventBillDeleted = "bill.deleted"
)

type BillEvent struct {
	Type       string       `json:"type"`
	BillID     string       `json:"billId"`
	Bill       *domain.Bill `json:"bill,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// publish never fails the caller: the bill is already persisted.
func (s *BillingService) publish(ctx context.Context, eventType, billID string, bill *domain.Bill) {
	if s.events == nil {
		return
	}

	event := BillEvent{
		Type:       eventType,
		BillID:     billID,
		Bill:       bill,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, billID, event); err != nil {
		s.logger.Warn("failed to publish bill event",
			zap.String("event", eventType),
			zap.String("bill_id", billID),
			zap.Error(err),
		)
	}
}
