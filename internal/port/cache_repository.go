package port

import (
	"context"
	"time"
)

// StockLocker serializes check-and-deduct on a single inventory item.
type StockLocker interface {
	// Lock blocks until the item is locked or ctx is done. The returned func releases it.
	Lock(ctx context.Context, itemID string) (func(), error)
}

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseIdempotency drops a key so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
