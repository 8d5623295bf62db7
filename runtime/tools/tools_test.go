package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/tools"
)

func TestResolveBuiltinInvokesRegisteredFunc(t *testing.T) {
	p := tools.New(nil)
	called := false
	require.NoError(t, p.RegisterBuiltin(tools.BuiltinToolset{
		Ref:         "read_file",
		Description: "reads a file",
		Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		Fn: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			called = true
			return json.RawMessage(`"contents"`), nil
		},
	}))

	handle, err := p.Resolve(context.Background(), tools.BuiltinSpec("read_file"))
	require.NoError(t, err)
	assert.Equal(t, "read_file", handle.Name)

	require.NoError(t, handle.Validate(json.RawMessage(`{"path":"a.txt"}`)))

	out, err := handle.Invoke(context.Background(), json.RawMessage(`{"path":"a.txt"}`))
	require.NoError(t, err)
	assert.True(t, called)
	assert.JSONEq(t, `"contents"`, string(out))
}

func TestResolveBuiltinUnregisteredFails(t *testing.T) {
	p := tools.New(nil)
	_, err := p.Resolve(context.Background(), tools.BuiltinSpec("missing"))
	require.Error(t, err)
}

func TestRegisterBuiltinDuplicateFails(t *testing.T) {
	p := tools.New(nil)
	toolset := tools.BuiltinToolset{Ref: "x", Fn: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	}}
	require.NoError(t, p.RegisterBuiltin(toolset))
	require.Error(t, p.RegisterBuiltin(toolset))
}

func TestHandleValidateRejectsMismatchedSchema(t *testing.T) {
	p := tools.New(nil)
	require.NoError(t, p.RegisterBuiltin(tools.BuiltinToolset{
		Ref:    "needs_number",
		Schema: json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer"}},"required":["count"]}`),
		Fn: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return nil, nil
		},
	}))
	handle, err := p.Resolve(context.Background(), tools.BuiltinSpec("needs_number"))
	require.NoError(t, err)

	err = handle.Validate(json.RawMessage(`{"count":"not a number"}`))
	require.Error(t, err)
	var verr *tools.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Issues)
}

func TestResolveMCPWithoutManagerFails(t *testing.T) {
	p := tools.New(nil)
	_, err := p.Resolve(context.Background(), tools.MCPSpec("server1", "tool1"))
	require.Error(t, err)
}
