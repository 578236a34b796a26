package cache

import (
	"context"
	"sync"
	"time"

	"github.com/stayledger/backend/internal/domain/shared"
)

// claim is a held key with its expiry
type claim struct {
	expiresAt time.Time
}

// InMemoryLockGuard implements LockGuard with a process-local map.
// It only guards writers inside a single instance.
type InMemoryLockGuard struct {
	mu        sync.Mutex
	claims    map[string]claim
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryLockGuard creates a guard and starts its expiry sweeper
func NewInMemoryLockGuard() *InMemoryLockGuard {
	g := &InMemoryLockGuard{
		claims:   make(map[string]claim),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	g.wg.Add(1)
	go g.cleanupLoop()

	return g
}

// Acquire claims key unless an unexpired claim exists
func (g *InMemoryLockGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if c, exists := g.claims[key]; exists && now.Before(c.expiresAt) {
		return false, nil
	}
	g.claims[key] = claim{expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops the claim on key
func (g *InMemoryLockGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (g *InMemoryLockGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

func (g *InMemoryLockGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *InMemoryLockGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, c := range g.claims {
		if !now.Before(c.expiresAt) {
			delete(g.claims, key)
		}
	}
}

// Size returns the number of held claims
func (g *InMemoryLockGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

var _ shared.LockGuard = (*InMemoryLockGuard)(nil)
