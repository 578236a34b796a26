package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/infrastructure/config"
)

// LockGuardFactory picks a lock guard implementation from configuration
type LockGuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(RedisConfig) (shared.LockGuard, error)
}

// LockGuardFactoryOption is a functional option for configuring the factory
type LockGuardFactoryOption func(*LockGuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockGuardFactoryOption {
	return func(f *LockGuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory guard. Default is true.
func WithInMemoryFallback(allow bool) LockGuardFactoryOption {
	return func(f *LockGuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockGuardFactory creates a new factory
func NewLockGuardFactory(cfg config.RedisConfig, opts ...LockGuardFactoryOption) *LockGuardFactory {
	f := &LockGuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect: func(c RedisConfig) (shared.LockGuard, error) {
			return NewRedisLockGuard(c)
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateGuard returns a Redis guard when Redis is enabled and reachable,
// and the in-memory guard otherwise
func (f *LockGuardFactory) CreateGuard() (shared.LockGuard, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory lock guard")
		return NewInMemoryLockGuard(), nil
	}

	guard, err := f.connect(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis lock guard", zap.String("addr", f.redisConfig.Addr()))
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis lock guard unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory lock guard. "+
		"Concurrent lock attempts from other instances are then caught only by the database.",
		zap.Error(err),
	)
	return NewInMemoryLockGuard(), nil
}
