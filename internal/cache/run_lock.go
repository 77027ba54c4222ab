// Package cache holds the Redis-backed coordination used between concurrent runs.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/visionbatch/internal/config"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a non-blocking lock built on Redis SET NX with a TTL, so a crashed
// run frees its prefix once the TTL lapses.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock creates a RunLock over client using the configured TTL.
func NewRunLock(client *redis.Client, cfg config.CacheConfig) *RunLock {
	return &RunLock{client: client, ttl: lockTTL(cfg)}
}

// TryAcquire attempts to take key without waiting. It returns acquired=false
// when another holder owns the key.
func (l *RunLock) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("try acquire lock for %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			// The caller's context may be cancelled by the time the run ends.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to release run lock")
			}
		})
	}

	return release, true, nil
}
