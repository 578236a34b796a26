package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/infrastructure/config"
)

func newTestRedisGuard(t *testing.T) (*RedisLockGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewRedisLockGuardWithClient(client, "")
	t.Cleanup(func() { _ = guard.Close() })
	return guard, mr
}

func TestRedisLockGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire is refused until release", func(t *testing.T) {
		guard, mr := newTestRedisGuard(t)

		ok, err := guard.Acquire(ctx, "statement-lock:listing-1:2024-03", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists(defaultLockKeyPrefix+"statement-lock:listing-1:2024-03"))

		ok, err = guard.Acquire(ctx, "statement-lock:listing-1:2024-03", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, guard.Release(ctx, "statement-lock:listing-1:2024-03"))
		assert.False(t, mr.Exists(defaultLockKeyPrefix+"statement-lock:listing-1:2024-03"))

		ok, err = guard.Acquire(ctx, "statement-lock:listing-1:2024-03", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("claim expires with its ttl", func(t *testing.T) {
		guard, mr := newTestRedisGuard(t)

		ok, err := guard.Acquire(ctx, "k", 30*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(31 * time.Second)

		ok, err = guard.Acquire(ctx, "k", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release leaves a claim taken over by another writer", func(t *testing.T) {
		guard, mr := newTestRedisGuard(t)
		other := NewRedisLockGuardWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
		defer other.Close()

		ok, err := guard.Acquire(ctx, "k", time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		mr.FastForward(2 * time.Second)

		ok, err = other.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, guard.Release(ctx, "k"))
		assert.True(t, mr.Exists(defaultLockKeyPrefix+"k"))
	})

	t.Run("release of an unknown key is a no-op", func(t *testing.T) {
		guard, _ := newTestRedisGuard(t)
		assert.NoError(t, guard.Release(ctx, "never-acquired"))
	})

	t.Run("redis errors surface", func(t *testing.T) {
		guard, mr := newTestRedisGuard(t)
		mr.Close()

		_, err := guard.Acquire(ctx, "k", time.Minute)
		assert.Error(t, err)
	})
}

func TestInMemoryLockGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("claims are exclusive until released", func(t *testing.T) {
		guard := NewInMemoryLockGuard()
		defer guard.Close()

		ok, err := guard.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = guard.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, guard.Release(ctx, "k"))
		assert.Equal(t, 0, guard.Size())
	})

	t.Run("expired claims can be taken and are swept", func(t *testing.T) {
		guard := NewInMemoryLockGuard()
		defer guard.Close()
		now := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
		guard.now = func() time.Time { return now }

		ok, _ := guard.Acquire(ctx, "a", time.Second)
		require.True(t, ok)
		ok, _ = guard.Acquire(ctx, "b", time.Hour)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		guard.cleanup()
		assert.Equal(t, 1, guard.Size())

		ok, _ = guard.Acquire(ctx, "a", time.Second)
		assert.True(t, ok)
	})

	t.Run("exactly one concurrent writer wins", func(t *testing.T) {
		guard := NewInMemoryLockGuard()
		defer guard.Close()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := guard.Acquire(ctx, "k", time.Minute); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		guard := NewInMemoryLockGuard()
		defer guard.Close()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := guard.Acquire(cctx, "k", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		guard := NewInMemoryLockGuard()
		assert.NoError(t, guard.Close())
		assert.NoError(t, guard.Close())
	})
}

func TestLockGuardFactory(t *testing.T) {
	t.Run("redis disabled", func(t *testing.T) {
		guard, err := NewLockGuardFactory(config.RedisConfig{}).CreateGuard()
		require.NoError(t, err)
		defer guard.Close()
		assert.IsType(t, &InMemoryLockGuard{}, guard)
	})

	t.Run("redis reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		guard, err := NewLockGuardFactory(config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port},
			WithLogger(zap.NewNop())).CreateGuard()
		require.NoError(t, err)
		defer guard.Close()
		assert.IsType(t, &RedisLockGuard{}, guard)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		f := NewLockGuardFactory(config.RedisConfig{Enabled: true, Host: "localhost", Port: 6379})
		f.connect = func(RedisConfig) (shared.LockGuard, error) { return nil, errors.New("dial tcp: refused") }

		guard, err := f.CreateGuard()
		require.NoError(t, err)
		defer guard.Close()
		assert.IsType(t, &InMemoryLockGuard{}, guard)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		f := NewLockGuardFactory(config.RedisConfig{Enabled: true}, WithInMemoryFallback(false))
		f.connect = func(RedisConfig) (shared.LockGuard, error) { return nil, errors.New("dial tcp: refused") }

		_, err := f.CreateGuard()
		assert.Error(t, err)
	})
}
