package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestTryAcquireIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewOrderLock(client, time.Second)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.TryAcquire(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := lock.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", holder)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewOrderLock(client, time.Second)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "owner")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "intruder"))
	holder, err := lock.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "owner", holder)

	require.NoError(t, lock.Release(ctx, "owner"))
	holder, err = lock.Holder(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestLockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewOrderLock(client, 2*time.Second)
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "crashed")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)

	ok, err = lock.TryAcquire(ctx, "next")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewOrderLock(client, 5*time.Second)
	lock.RetryEvery = 5 * time.Millisecond
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := lock.Acquire(ctx)
		if err == nil {
			close(acquired)
			second()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire never succeeded")
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewOrderLock(client, 5*time.Second)
	lock.RetryEvery = 5 * time.Millisecond

	ok, err := lock.TryAcquire(context.Background(), "holder")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = lock.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestConcurrentAcquireIsMutuallyExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewOrderLock(client, 5*time.Second)
	lock.RetryEvery = time.Millisecond
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lock.Acquire(ctx)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}
