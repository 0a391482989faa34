package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL   = 5 * time.Second
	defaultLockRetry = 25 * time.Millisecond
)

// ErrLockTimeout is returned when a distributed lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for staff lock")

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance talking to the same redis.
// Each lock is SET NX PX with a random token; release deletes the key only if
// the token still matches.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can
// block others; wait bounds how long Lock retries before ErrLockTimeout.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = ttl
	}
	return &RedisLocker{
		rdb:    rdb,
		prefix: "salonbook:lock:",
		ttl:    ttl,
		retry:  defaultLockRetry,
		wait:   wait,
		logger: logger.With().Str("component", "redis_locker").Logger(),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseLockScript.Run(releaseCtx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("failed to release staff lock")
			}
		})
	}, nil
}
