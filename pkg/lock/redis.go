package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRetryInterval = 50 * time.Millisecond

// compare-and-delete so an expired holder cannot free a lock it no longer owns
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a Locker backed by SET NX PX.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewRedisLocker builds a RedisLocker. ttl bounds how long a crashed holder can
// keep a key.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: ttl, retryInterval: defaultRetryInterval, logger: logger}
}

// Acquire polls until the key is set by this caller or ctx is done.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	ticker := time.NewTicker(r.retryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("lock.RedisLocker.Acquire: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(releaseCtx, r.client, []string{lockKey}, token).Err(); err != nil && err != redis.Nil {
				r.logger.Warn("release redis lock failed", zap.String("key", lockKey), zap.Error(err))
			}
		})
	}, nil
}
