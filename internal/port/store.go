package port

import "context"

// Store bundles the repositories a storage backend provides.
type Store interface {
	InventoryRepository
	BillRepository
	Ping(ctx context.Context) error
	Close() error
}
