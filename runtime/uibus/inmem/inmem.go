// Package inmem implements an in-process UI bus (C11): synchronous
// fan-out to renderers registered in the same process, the default bus a
// CLI host wires up (no Redis required).
//
// Grounded on runtime/agent/hooks.Bus: the same snapshot-before-iterate
// registration/dispatch shape and Subscription handle, with the error
// semantics relaxed per spec.md §6's "append-only" / "fire-and-forget"
// note — a renderer error is logged and does not stop delivery to the
// remaining renderers, and Dispatch itself returns nothing to the caller.
package inmem

import (
	"context"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/uibus"
)

// Renderer receives dispatched events. Implementations should return
// quickly; Dispatch calls every registered Renderer synchronously on the
// dispatching goroutine.
type Renderer interface {
	Render(ctx context.Context, event uibus.Event) error
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(ctx context.Context, event uibus.Event) error

func (f RendererFunc) Render(ctx context.Context, event uibus.Event) error { return f(ctx, event) }

// Subscription is returned by Register; Close stops further delivery to
// that renderer. Idempotent.
type Subscription interface {
	Close()
}

// Bus is an in-process, synchronous fan-out uibus.Bus.
type Bus struct {
	mu        sync.RWMutex
	renderers map[*subscription]Renderer
	logger    telemetry.Logger
}

// New constructs an empty Bus. A nil logger defaults to a no-op logger.
func New(logger telemetry.Logger) *Bus {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Bus{renderers: make(map[*subscription]Renderer), logger: logger}
}

// Register adds a renderer, returning a Subscription that removes it.
func (b *Bus) Register(r Renderer) Subscription {
	s := &subscription{bus: b}
	b.mu.Lock()
	b.renderers[s] = r
	b.mu.Unlock()
	return s
}

// Dispatch delivers event to every currently registered renderer on the
// calling goroutine. Renderers are held in a map, so the order in which
// they are called is not defined and is not registration order. A
// renderer error is logged
// at Warn level and does not stop delivery to the rest — per spec.md §6
// the bus is append-only and fire-and-forget, so no error can propagate
// back to whatever called Dispatch.
func (b *Bus) Dispatch(event uibus.Event) {
	b.mu.RLock()
	renderers := make([]Renderer, 0, len(b.renderers))
	for _, r := range b.renderers {
		renderers = append(renderers, r)
	}
	b.mu.RUnlock()

	ctx := context.Background()
	for _, r := range renderers {
		if err := r.Render(ctx, event); err != nil {
			b.logger.Warn(ctx, "uibus: renderer error", "event_type", event.Type(), "error", err)
		}
	}
}

type subscription struct {
	bus  *Bus
	once sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.renderers, s)
		s.bus.mu.Unlock()
	})
}
