package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix     = "lock:"
	lockRetryInterval = 20 * time.Millisecond
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockStore creates a new LockStore. ttl bounds how long a crashed holder keeps a lock.
func NewLockStore(client *redis.Client, ttl time.Duration) *LockStore {
	return &LockStore{client: client, ttl: ttl}
}

// TryAcquire attempts to take the lock once.
// Returns the owner token and true if the lock was acquired.
func (s *LockStore) TryAcquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+key, token, s.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees the lock if token still owns it.
func (s *LockStore) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{lockKeyPrefix + key}, token).Err()
}

// Lock blocks until the lock is acquired or ctx is done.
func (s *LockStore) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := s.TryAcquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// The caller's context may already be cancelled.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = s.Release(releaseCtx, key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
