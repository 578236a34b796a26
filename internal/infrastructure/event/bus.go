package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus is stopped")

// InMemoryEventBus delivers domain events to subscribed handlers inside the
// process. Delivery is synchronous; one failing handler never blocks the
// others.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	// mu orders the running check in Publish against Stop, so no delivery
	// joins inflight once Stop has begun waiting
	mu       sync.RWMutex
	running  bool
	inflight sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus. The bus accepts
// events as soon as it is created.
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		running:  true,
	}
}

// Publish hands every event to its handlers and returns the joined
// handler failures
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if !b.begin() {
		return ErrBusStopped
	}
	defer b.inflight.Done()

	var errs []error
	for _, event := range events {
		for _, handler := range b.registry.Handlers(event.EventType()) {
			err := b.dispatch(ctx, handler, event)
			if err == nil {
				metrics.IncEventHandled(event.EventType(), metrics.ResultSuccess)
				continue
			}
			metrics.IncEventHandled(event.EventType(), metrics.ResultError)
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s handler: %w", event.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// begin registers an in-flight delivery unless the bus is stopped
func (b *InMemoryEventBus) begin() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return false
	}
	b.inflight.Add(1)
	return true
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start (re)opens the bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Len()))
	return nil
}

// Stop refuses new events and waits for in-flight deliveries
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

// dispatch turns a handler panic into an error
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
