package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const orderLockKey = "timeline:order_lock"

var ErrLockTimeout = errors.New("timed out waiting for order lock")

// releaseScript deletes the lock only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrderLock is a cluster-wide mutex around order assignment on create.
type OrderLock struct {
	Client     *redis.Client
	TTL        time.Duration
	RetryEvery time.Duration
	Key        string
}

func NewOrderLock(client *redis.Client, ttl time.Duration) *OrderLock {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &OrderLock{
		Client:     client,
		TTL:        ttl,
		RetryEvery: 25 * time.Millisecond,
		Key:        orderLockKey,
	}
}

// TryAcquire makes one attempt; ok is false when someone else holds the lock.
func (l *OrderLock) TryAcquire(ctx context.Context, token string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire order lock: %w", err)
	}
	return ok, nil
}

// Acquire blocks until the lock is held or ctx is done. The returned function
// releases it.
func (l *OrderLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	for {
		ok, err := l.TryAcquire(ctx, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = l.Release(context.Background(), token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(l.RetryEvery):
		}
	}
}

func (l *OrderLock) Release(ctx context.Context, token string) error {
	err := releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release order lock: %w", err)
	}
	return nil
}

// Holder returns the token currently holding the lock, or "" when free.
func (l *OrderLock) Holder(ctx context.Context) (string, error) {
	val, err := l.Client.Get(ctx, l.Key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
