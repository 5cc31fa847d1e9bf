// Package hooks dispatches committed vault events to registered handlers.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"docvault/internal/dv"
)

// Handler reacts to an event. A returned error is reported to the caller
// of Dispatch; it does not stop other handlers.
type Handler func(ctx context.Context, ev dv.Event) error

// Dispatcher calls every handler registered for an event's kind, then
// every catch-all handler, in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[dv.EventKind][]Handler
	all      []Handler
}

var _ dv.Hooks = (*Dispatcher)(nil)

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[dv.EventKind][]Handler)}
}

// On registers h for one event kind.
func (d *Dispatcher) On(kind dv.EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// OnAll registers h for every event.
func (d *Dispatcher) OnAll(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

// Dispatch runs the handlers for ev and collects their errors. A handler
// that panics is reported as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev dv.Event) []error {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[ev.Kind])+len(d.all))
	hs = append(hs, d.handlers[ev.Kind]...)
	hs = append(hs, d.all...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := call(ctx, h, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func call(ctx context.Context, h Handler, ev dv.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook for %s panicked: %v", ev.Kind, r)
		}
	}()
	if err := h(ctx, ev); err != nil {
		return fmt.Errorf("hook for %s: %w", ev.Kind, err)
	}
	return nil
}

// LogEvents returns a handler that logs every event at info level.
func LogEvents(logger dv.Logger) Handler {
	return func(_ context.Context, ev dv.Event) error {
		args := []any{"event", string(ev.Kind)}
		if ev.Container != nil {
			args = append(args, "container", ev.Container.Name)
		}
		if ev.Item != nil {
			args = append(args, "item", ev.Item.Filename)
		}
		if ev.Revision != nil {
			args = append(args, "revision", ev.Revision.RevisionNumber)
		}
		if ev.Previous != "" {
			args = append(args, "previous", ev.Previous)
		}
		logger.Info("vault event", args...)
		return nil
	}
}
