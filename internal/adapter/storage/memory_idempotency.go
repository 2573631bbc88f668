package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/shop-billing/internal/port"
)

const idempotencySweepInterval = time.Minute

var _ port.IdempotencyRepository = (*MemoryIdempotency)(nil)

// MemoryIdempotency is the single-instance fallback when Redis is not configured.
type MemoryIdempotency struct {
	mu        sync.Mutex
	keys      map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (m *MemoryIdempotency) SetIdempotency(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
	}

	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

// sweep drops expired keys. Callers hold mu.
func (m *MemoryIdempotency) sweep(now time.Time) {
	for key, expires := range m.keys {
		if !now.Before(expires) {
			delete(m.keys, key)
		}
	}
	m.nextSweep = now.Add(idempotencySweepInterval)
}

func (m *MemoryIdempotency) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}
