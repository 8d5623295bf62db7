package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/mcp"
)

type fakeCaller struct {
	name      string
	tools     []mcp.ToolDescriptor
	callErr   error
	closeErr  error
	closed    bool
	lastCall  mcp.CallRequest
}

func (f *fakeCaller) CallTool(ctx context.Context, req mcp.CallRequest) (mcp.CallResponse, error) {
	f.lastCall = req
	if f.callErr != nil {
		return mcp.CallResponse{}, f.callErr
	}
	return mcp.CallResponse{Result: json.RawMessage(`"ok"`)}, nil
}

func (f *fakeCaller) ListTools(context.Context) ([]mcp.ToolDescriptor, error) { return f.tools, nil }
func (f *fakeCaller) ListResources(context.Context) ([]mcp.ResourceDescriptor, error) {
	return nil, nil
}
func (f *fakeCaller) ReadResource(context.Context, string) (mcp.ResourceContent, error) {
	return mcp.ResourceContent{}, nil
}
func (f *fakeCaller) ListPrompts(context.Context) ([]mcp.PromptDescriptor, error) { return nil, nil }
func (f *fakeCaller) Close() error                                               { f.closed = true; return f.closeErr }

func newManagerWithFakes(fakes map[string]*fakeCaller) *mcp.Manager {
	var configs []mcp.ServerConfig
	for name := range fakes {
		configs = append(configs, mcp.ServerConfig{Name: name, Command: "unused", Enabled: true, Transport: "stdio"})
	}
	m := mcp.NewManager(configs, nil)
	m.SetFactoryForTest(func(ctx context.Context, cfg mcp.ServerConfig) (mcp.Caller, error) {
		return fakes[cfg.Name], nil
	})
	return m
}

func TestOpenStartsAllEnabledServers(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {name: "a", tools: []mcp.ToolDescriptor{{Name: "tool1"}}},
		"b": {name: "b", tools: []mcp.ToolDescriptor{{Name: "tool2"}}},
	}
	m := newManagerWithFakes(fakes)

	require.NoError(t, m.Open(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b"}, m.ActiveServerNames())
}

func TestListAllToolsAggregatesAndTagsServerName(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {tools: []mcp.ToolDescriptor{{Name: "t1"}}},
	}
	m := newManagerWithFakes(fakes)
	require.NoError(t, m.Open(context.Background()))

	tools := m.ListAllTools(context.Background())
	require.Len(t, tools, 1)
	assert.Equal(t, "a", tools[0].ServerName)
	assert.Equal(t, "t1", tools[0].Name)
}

func TestCallToolOnUnknownServerReturnsNotFound(t *testing.T) {
	m := newManagerWithFakes(map[string]*fakeCaller{})
	_, err := m.CallToolOn(context.Background(), "missing", mcp.CallRequest{Tool: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMcpClientNotFound))
}

func TestCallToolOnRelaysToCorrectServer(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {},
		"b": {},
	}
	m := newManagerWithFakes(fakes)
	require.NoError(t, m.Open(context.Background()))

	_, err := m.CallToolOn(context.Background(), "b", mcp.CallRequest{Tool: "do_thing"})
	require.NoError(t, err)
	assert.Equal(t, "do_thing", fakes["b"].lastCall.Tool)
	assert.Equal(t, mcp.CallRequest{}, fakes["a"].lastCall)
}

func TestCallToolOnWrapsInteractionError(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {callErr: errors.New("boom")},
	}
	m := newManagerWithFakes(fakes)
	require.NoError(t, m.Open(context.Background()))

	_, err := m.CallToolOn(context.Background(), "a", mcp.CallRequest{Tool: "x"})
	require.Error(t, err)
	var interactionErr *apperrors.McpClientInteractionError
	require.ErrorAs(t, err, &interactionErr)
	assert.Equal(t, "a", interactionErr.Server)
}

func TestCloseShutsDownAllClients(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {}, "b": {},
	}
	m := newManagerWithFakes(fakes)
	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	assert.True(t, fakes["a"].closed)
	assert.True(t, fakes["b"].closed)
	assert.Empty(t, m.ActiveServerNames())
}

func TestCloseAggregatesErrors(t *testing.T) {
	fakes := map[string]*fakeCaller{
		"a": {closeErr: errors.New("fail a")},
		"b": {closeErr: errors.New("fail b")},
	}
	m := newManagerWithFakes(fakes)
	require.NoError(t, m.Open(context.Background()))

	err := m.Close(context.Background())
	require.Error(t, err)
	var agg *apperrors.Aggregate
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
}

func TestDisabledServerIsNotStarted(t *testing.T) {
	configs := []mcp.ServerConfig{
		{Name: "a", Command: "unused", Enabled: false, Transport: "stdio"},
	}
	m := mcp.NewManager(configs, nil)
	require.NoError(t, m.Open(context.Background()))
	assert.Empty(t, m.ActiveServerNames())
}
