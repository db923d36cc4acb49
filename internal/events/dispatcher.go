package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one event payload. Handlers run on the dispatcher's
// worker pool, never on the emitting goroutine, and their errors are logged
// rather than returned to the emitter.
type Handler func(ctx context.Context, payload any) error

type task struct {
	name    string
	payload any
}

// Dispatcher is the in-process replacement for the original global event
// emitter: a named-topic pub/sub with a bounded queue and a fixed worker
// pool. Delivery is at-least-once, same-process, best-effort; when the queue
// is full the event is dropped and logged, so emitters are never blocked by
// slow audit or registry writes.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	queue    chan task
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New starts a dispatcher with the given worker count and queue capacity.
func New(logger *slog.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string][]Handler),
		queue:    make(chan task, queueSize),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// On subscribes a handler to an event name. Subscriptions are expected to
// happen during wiring, before traffic.
func (d *Dispatcher) On(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// Emit schedules an event for background delivery and returns immediately.
// A full queue drops the event; failures of the scheduled handlers never
// reach the caller.
func (d *Dispatcher) Emit(name string, payload any) {
	select {
	case d.queue <- task{name: name, payload: payload}:
	case <-d.done:
		d.logger.Warn("event dropped, dispatcher closed", slog.String("event", name))
	default:
		d.logger.Warn("event dropped, queue full", slog.String("event", name))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case t := <-d.queue:
			d.dispatch(t)
		case <-d.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case t := <-d.queue:
					d.dispatch(t)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(t task) {
	d.mu.RLock()
	hs := d.handlers[t.name]
	d.mu.RUnlock()

	for _, h := range hs {
		// Fire-and-forget work is detached from any request context:
		// a caller abandoning its request must not cancel the audit or
		// registry write it triggered.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := d.run(ctx, h, t); err != nil {
			d.logger.Error("event handler failed",
				slog.String("event", t.name),
				slog.Any("error", err),
			)
		}
		cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context, h Handler, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %q: %v", t.name, r)
		}
	}()
	return h(ctx, t.payload)
}

// Close stops accepting events and waits for in-flight handlers to finish,
// bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.done) })

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}
