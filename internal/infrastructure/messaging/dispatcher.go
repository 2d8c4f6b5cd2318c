// Package messaging implements the event bus for the internship hub.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

const defaultHandlerTimeout = 30 * time.Second

// Dispatcher fans events out to the handlers registered for their type.
// Each handler runs through the middleware chain and gets a bounded number
// of retries with exponential backoff before the failure is logged and
// dropped.
type Dispatcher struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]registration
	middlewares []Middleware
	retry       RetryConfig
	logger      *slog.Logger
	workerPool  chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

type registration struct {
	handler    shared.EventHandler
	maxRetries int
	timeout    time.Duration
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// WorkerPoolSize bounds the number of handlers running at once.
	WorkerPoolSize int

	// RetryConfig governs per-handler retries.
	RetryConfig RetryConfig

	// Logger receives structured dispatch logs.
	Logger *slog.Logger
}

// RetryConfig describes the backoff applied between handler attempts.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy used by both binaries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerPoolSize: 10,
		RetryConfig:    DefaultRetryConfig(),
	}
}

// NewDispatcher creates a dispatcher ready for handler registration.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		handlers:   make(map[shared.EventType][]registration),
		retry:      config.RetryConfig,
		logger:     config.Logger,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register subscribes a handler to an event type.
func (d *Dispatcher) Register(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], registration{
		handler:    handler,
		maxRetries: d.retry.MaxRetries,
		timeout:    defaultHandlerTimeout,
	})
	d.logger.Debug("registered handler",
		"event_type", eventType,
		"handler_name", handler.Name(),
	)

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// handlerFunc adapts a function to shared.EventHandler, preserving the
// wrapped handler's name through middleware chains.
type handlerFunc struct {
	name string
	fn   func(shared.Event) error
}

func (h handlerFunc) Handle(event shared.Event) error { return h.fn(event) }
func (h handlerFunc) Name() string                    { return h.name }

// Use appends middleware to the chain. Middleware added first runs
// outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// RecoveryMiddleware turns handler panics into errors so one handler
// cannot take down the dispatch loop.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return handlerFunc{name: next.Name(), fn: func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic recovered",
						"event_type", event.EventType(),
						"handler", next.Name(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next.Handle(event)
		}}
	}
}

// LoggingMiddleware logs every handler execution with its outcome.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return handlerFunc{name: next.Name(), fn: func(event shared.Event) error {
			start := time.Now()
			err := next.Handle(event)

			if err != nil {
				logger.Error("handler failed",
					"event_type", event.EventType(),
					"handler", next.Name(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
					"error", err,
				)
			} else {
				logger.Debug("handler completed",
					"event_type", event.EventType(),
					"handler", next.Name(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
				)
			}

			return err
		}}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHING
// ══════════════════════════════════════════════════════════════════════════════

// AttachTo subscribes the dispatcher to every event published on the bus.
func (d *Dispatcher) AttachTo(bus *InMemoryEventBus) error {
	return bus.SubscribeAll(handlerFunc{name: "dispatcher", fn: d.dispatch})
}

func (d *Dispatcher) dispatch(event shared.Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, reg := range handlers {
		wg.Add(1)
		go func(r registration) {
			defer wg.Done()
			d.runHandler(event, r, middlewares)
		}(reg)
	}
	wg.Wait()

	return nil
}

func (d *Dispatcher) runHandler(event shared.Event, reg registration, middlewares []Middleware) {
	select {
	case d.workerPool <- struct{}{}:
		defer func() { <-d.workerPool }()
	case <-d.ctx.Done():
		return
	}

	handler := reg.handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	var lastErr error
	for attempt := 0; attempt <= reg.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(d.backoff(attempt)):
			}
		}

		if lastErr = d.runWithTimeout(handler, event, reg.timeout); lastErr == nil {
			return
		}

		d.logger.Warn("handler attempt failed",
			"handler", reg.handler.Name(),
			"event_type", event.EventType(),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	d.logger.Error("handler exhausted retries, dropping event",
		"handler", reg.handler.Name(),
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"attempts", reg.maxRetries+1,
		"error", lastErr,
	)
}

func (d *Dispatcher) runWithTimeout(handler shared.EventHandler, event shared.Event, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- handler.Handle(event)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("handler timeout after %v", timeout)
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := float64(d.retry.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= d.retry.BackoffMultiplier
	}
	if limit := float64(d.retry.MaxBackoff); delay > limit {
		delay = limit
	}
	return time.Duration(delay)
}

// Stop cancels in-flight handler retries. Safe to call more than once.
func (d *Dispatcher) Stop() error {
	d.cancel()
	d.logger.Info("dispatcher stopped")
	return nil
}
