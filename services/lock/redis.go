package locksvc

import (
	"context"
	"fmt"
	"time"

	"github.com/meoying/dlock-go"
	dlockRedis "github.com/meoying/dlock-go/redis"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
)

const defaultAcquireTimeout = 3 * time.Second

// distLock is the part of dlock.Lock we rely on.
type distLock interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// RedisLocker serializes the processing of an alert across worker processes.
type RedisLocker struct {
	newLock        func(ctx context.Context, key string, ttl time.Duration) (distLock, error)
	ttl            time.Duration
	acquireTimeout time.Duration
}

var _ alert.Locker = (*RedisLocker)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

// NewRedisLocker holds each lock for at most ttl, long enough for one alert to be processed.
func NewRedisLocker(rdb redis.Cmdable, ttl time.Duration) *RedisLocker {
	client := dlockRedis.NewClient(rdb)
	return newRedisLocker(client, ttl)
}

func newRedisLocker(client dlock.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		newLock: func(ctx context.Context, key string, ttl time.Duration) (distLock, error) {
			return client.NewLock(ctx, key, ttl)
		},
		ttl:            ttl,
		acquireTimeout: defaultAcquireTimeout,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, alertID int) (alert.Lock, error) {
	lock, err := l.newLock(ctx, alert.LockKey(alertID), l.ttl)
	if err != nil {
		return nil, errors.Wrap(err, "creating distributed lock")
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.acquireTimeout)
	defer cancel()
	// held elsewhere or redis unreachable: either way this run must not touch the alert
	if err = lock.Lock(lockCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", alert.ErrLocked, err)
	}
	return lock, nil
}
