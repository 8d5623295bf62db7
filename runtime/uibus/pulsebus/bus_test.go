package pulsebus_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/uibus"
	"github.com/streetrace-ai/streetrace-go/runtime/uibus/pulsebus"
)

type fakeStream struct {
	added []published
}

type published struct {
	event   string
	payload []byte
}

func (s *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	s.added = append(s.added, published{event: event, payload: payload})
	return "1-0", nil
}

type fakeClient struct {
	streams map[string]*fakeStream
}

func newFakeClient() *fakeClient { return &fakeClient{streams: make(map[string]*fakeStream)} }

func (c *fakeClient) Stream(name string) (pulsebus.Stream, error) {
	s, ok := c.streams[name]
	if !ok {
		s = &fakeStream{}
		c.streams[name] = s
	}
	return s, nil
}

func (c *fakeClient) Close(context.Context) error { return nil }

func TestNewRequiresClient(t *testing.T) {
	_, err := pulsebus.New(pulsebus.Options{}, nil)
	assert.Error(t, err)
}

func TestDispatchPublishesEnvelope(t *testing.T) {
	client := newFakeClient()
	bus, err := pulsebus.New(pulsebus.Options{Client: client, StreamName: "ui-test"}, nil)
	require.NoError(t, err)

	bus.Dispatch(uibus.Info{Text: "hello"})

	stream := client.streams["ui-test"]
	require.Len(t, stream.added, 1)
	assert.Equal(t, "info", stream.added[0].event)

	var env pulsebus.Envelope
	require.NoError(t, json.Unmarshal(stream.added[0].payload, &env))
	assert.Equal(t, "info", env.Type)
}

func TestDispatchDefaultsStreamName(t *testing.T) {
	client := newFakeClient()
	bus, err := pulsebus.New(pulsebus.Options{Client: client}, nil)
	require.NoError(t, err)

	bus.Dispatch(uibus.Markdown{Text: "# hi"})

	require.Contains(t, client.streams, "ui")
}
