// Package pulsebus implements a Redis-backed UI bus (C11) for hosts that
// run the Supervisor out of process from whatever renders its events (a web
// UI behind a separate process, a second CLI attached to a running agent).
// It publishes every dispatched uibus.Event onto a goa.design/pulse stream
// as a small JSON envelope; any number of readers can attach a Pulse sink
// to the same stream to render independently.
//
// Grounded directly on
// goadesign-goa-ai/features/stream/pulse/clients/pulse/client.go (this
// file) and goadesign-goa-ai/features/stream/pulse/sink.go (bus.go): same
// Redis-backed client/stream/sink layering, adapted from that package's
// stream.Event vocabulary to this runtime's uibus.Event vocabulary.
package pulsebus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

type (
	// ClientOptions configures the Pulse client.
	ClientOptions struct {
		// Redis is the Redis connection backing every Pulse stream. Required.
		Redis *redis.Client
		// StreamMaxLen bounds the number of entries kept per stream. Zero uses
		// Pulse's own default.
		StreamMaxLen int
		// OperationTimeout bounds individual Add operations. Zero means no
		// per-call timeout.
		OperationTimeout time.Duration
	}

	// Client exposes the subset of Pulse operations the Bus needs.
	Client interface {
		Stream(name string) (Stream, error)
		Close(ctx context.Context) error
	}

	// Stream is a handle to one named Pulse stream.
	Stream interface {
		Add(ctx context.Context, event string, payload []byte) (string, error)
	}

	client struct {
		redis   *redis.Client
		maxLen  int
		timeout time.Duration
	}

	handle struct {
		stream  *streaming.Stream
		timeout time.Duration
	}
)

// NewClient constructs a Pulse client backed by opts.Redis, which is
// required.
func NewClient(opts ClientOptions) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulsebus: redis client is required")
	}
	return &client{redis: opts.Redis, maxLen: opts.StreamMaxLen, timeout: opts.OperationTimeout}, nil
}

func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulsebus: stream name is required")
	}
	var streamOptions []streamopts.Stream
	if c.maxLen > 0 {
		streamOptions = append(streamOptions, streamopts.WithStreamMaxLen(c.maxLen))
	}
	str, err := streaming.NewStream(name, c.redis, streamOptions...)
	if err != nil {
		return nil, fmt.Errorf("pulsebus: create stream %q: %w", name, err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

// Close is a no-op: the caller owns the Redis connection's lifecycle.
func (c *client) Close(context.Context) error { return nil }

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if event == "" {
		return "", errors.New("pulsebus: event name is required")
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("pulsebus: add: %w", err)
	}
	return id, nil
}
