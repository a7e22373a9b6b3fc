package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// releaseScript deletes the key only when it still holds our token, so a lock
// that expired and was re-taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance talking to the same Redis.
// The lock expires after ttl so a crashed holder cannot block an auction forever.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	timeout    time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl, timeout time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     "carauction:lock:",
		ttl:        ttl,
		timeout:    timeout,
		retryDelay: 10 * time.Millisecond,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	redisKey := r.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				log.Error("Failed to release redis lock",
					zap.String("key", redisKey),
					zap.Error(err),
				)
			}
		})
	}, nil
}
