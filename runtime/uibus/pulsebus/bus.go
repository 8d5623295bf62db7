package pulsebus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/uibus"
)

var errClientRequired = errors.New("pulsebus: client is required")

// Envelope wraps one dispatched event for transmission over a Pulse
// stream. Payload is the event itself, serialized generically; a reader
// re-decodes it against the concrete type named by Type.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Options configures a Bus.
type Options struct {
	// Client publishes envelopes. Required.
	Client Client
	// StreamName is the Pulse stream every event is published to. Defaults
	// to "ui" — a Bus is expected to be scoped to one Supervisor run (or one
	// long-lived CLI session), so a single stream name is normally enough;
	// callers that multiplex several concurrent runs over one Redis
	// instance should construct one Bus per run with a distinct StreamName.
	StreamName string
}

// Bus publishes dispatched uibus.Events to a Pulse stream. It implements
// uibus.Bus.
type Bus struct {
	client     Client
	streamName string
	logger     telemetry.Logger
}

// New constructs a Bus. opts.Client is required.
func New(opts Options, logger telemetry.Logger) (*Bus, error) {
	if opts.Client == nil {
		return nil, errClientRequired
	}
	name := opts.StreamName
	if name == "" {
		name = "ui"
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Bus{client: opts.Client, streamName: name, logger: logger}, nil
}

// Dispatch publishes event to the configured stream. Per spec.md §6 the UI
// bus is fire-and-forget: a publish failure is logged, never returned or
// panicked, since nothing downstream of Dispatch is positioned to act on
// it.
func (b *Bus) Dispatch(event uibus.Event) {
	ctx := context.Background()
	stream, err := b.client.Stream(b.streamName)
	if err != nil {
		b.logger.Warn(ctx, "pulsebus: open stream failed", "stream", b.streamName, "error", err)
		return
	}
	env := Envelope{Type: string(event.Type()), Timestamp: time.Now().UTC(), Payload: event}
	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Warn(ctx, "pulsebus: marshal envelope failed", "event_type", env.Type, "error", err)
		return
	}
	if _, err := stream.Add(ctx, env.Type, payload); err != nil {
		b.logger.Warn(ctx, "pulsebus: publish failed", "event_type", env.Type, "error", err)
	}
}

// Close releases the underlying Pulse client.
func (b *Bus) Close(ctx context.Context) error {
	return b.client.Close(ctx)
}
