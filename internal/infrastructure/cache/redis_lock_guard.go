package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stayledger/backend/internal/domain/shared"
)

const defaultLockKeyPrefix = "stayledger:guard:"

// releaseScript deletes the key only while it still holds our token, so a
// claim that expired and was taken by another writer is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockGuard implements LockGuard using Redis.
// Claims are visible to every instance sharing the Redis server.
type RedisLockGuard struct {
	client    *redis.Client
	keyPrefix string

	mu     sync.Mutex
	tokens map[string]string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisLockGuard connects to Redis and creates a guard
func NewRedisLockGuard(cfg RedisConfig) (*RedisLockGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockGuardWithClient(client, ""), nil
}

// NewRedisLockGuardWithClient creates a guard with an existing Redis client
func NewRedisLockGuardWithClient(client *redis.Client, keyPrefix string) *RedisLockGuard {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisLockGuard{
		client:    client,
		keyPrefix: keyPrefix,
		tokens:    make(map[string]string),
	}
}

// Acquire claims key for ttl with SET NX
func (g *RedisLockGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire guard %s: %w", key, err)
	}
	if ok {
		g.mu.Lock()
		g.tokens[key] = token
		g.mu.Unlock()
	}
	return ok, nil
}

// Release drops a claim this guard holds. Releasing an unknown or expired
// claim is a no-op.
func (g *RedisLockGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	token, ok := g.tokens[key]
	delete(g.tokens, key)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release guard %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisLockGuard) Close() error {
	return g.client.Close()
}

// GetClient returns the underlying Redis client
func (g *RedisLockGuard) GetClient() *redis.Client {
	return g.client
}

var _ shared.LockGuard = (*RedisLockGuard)(nil)
