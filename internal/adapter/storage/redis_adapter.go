package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/shop-billing/internal/port"
)

const (
	lockKeyPrefix    = "lock:inventory:"
	defaultLockTTL   = 5 * time.Second
	lockRetryBackoff = 20 * time.Millisecond
)

var (
	_ port.StockLocker           = (*RedisAdapter)(nil)
	_ port.IdempotencyRepository = (*RedisAdapter)(nil)
)

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client  *redis.Client
	lockTTL time.Duration
	logger  *zap.Logger
}

func NewRedisAdapter(client *redis.Client, lockTTL time.Duration, logger *zap.Logger) *RedisAdapter {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAdapter{client: client, lockTTL: lockTTL, logger: logger}
}

// Lock takes a token-owned lock on the item, retrying until ctx is done. The
// TTL bounds how long a crashed holder can block the item.
func (r *RedisAdapter) Lock(ctx context.Context, itemID string) (func(), error) {
	key := lockKeyPrefix + itemID
	token := uuid.New().String()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		// The request context may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		released, err := releaseLockScript.Run(releaseCtx, r.client, []string{key}, token).Int()
		if err != nil {
			r.logger.Error("failed to release stock lock", zap.String("item_id", itemID), zap.Error(err))
			return
		}
		if released == 0 {
			r.logger.Warn("stock lock expired before release",
				zap.String("item_id", itemID),
				zap.Duration("lock_ttl", r.lockTTL),
			)
		}
	}, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAdapter) Close() error {
	return r.client.Close()
}
