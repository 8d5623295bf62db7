package yamlworkload_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/tools"
	"github.com/streetrace-ai/streetrace-go/runtime/workload"
	"github.com/streetrace-ai/streetrace-go/runtime/workload/yamlworkload"
)

type stubClient struct{ text string }

func (c *stubClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{Content: []llm.Message{{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: c.text}}}}}, nil
}

func (c *stubClient) Stream(ctx context.Context, req llm.Request) (llm.Streamer, error) {
	return nil, llm.ErrStreamingUnsupported
}

func writeCard(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoaderIdentify(t *testing.T) {
	dir := t.TempDir()
	cardPath := writeCard(t, dir, "greeter.yaml", "name: greeter\ndescription: says hello\n")
	serversPath := writeCard(t, dir, "mcp_servers.yaml", "servers:\n  - name: fs\n    command: npx\n")
	notYAML := writeCard(t, dir, "readme.md", "# not yaml\n")

	l := yamlworkload.New(&stubClient{}, nil, "claude-x", nil)
	assert.True(t, l.Identify(cardPath))
	assert.False(t, l.Identify(serversPath))
	assert.False(t, l.Identify(notYAML))
}

func TestLoaderLoadAndBuild(t *testing.T) {
	dir := t.TempDir()
	cardPath := writeCard(t, dir, "greeter.yaml", `
name: greeter
description: says hello
prompt: "say hi"
`)

	l := yamlworkload.New(&stubClient{text: "hello there"}, nil, "claude-x", nil)
	def, err := l.Load(cardPath)
	require.NoError(t, err)
	assert.Equal(t, "greeter", def.Name)
	assert.Equal(t, workload.FormatYAML, def.Format)

	wl, err := l.Build(context.Background(), def)
	require.NoError(t, err)
	defer wl.Close()

	events, errc := wl.RunAsync(context.Background(), &model.Session{}, "")
	var final *model.Event
	for ev := range events {
		e := ev
		if e.IsFinal {
			final = &e
		}
	}
	require.NoError(t, <-errc)
	require.NotNil(t, final)
	assert.Equal(t, "hello there", final.Text())
}

func TestLoaderBuildWithBuiltinTool(t *testing.T) {
	dir := t.TempDir()
	cardPath := writeCard(t, dir, "fs_agent.yaml", `
name: fs_agent
description: reads files
tools:
  - streetrace:
      module: fs_tool
      function: read_file
`)

	provider := tools.New(nil)
	require.NoError(t, provider.RegisterBuiltin(tools.BuiltinToolset{
		Ref:         "fs_tool.read_file",
		Description: "reads a file",
		Schema:      json.RawMessage(`{"type":"object"}`),
		Fn: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"ok"`), nil
		},
	}))

	l := yamlworkload.New(&stubClient{text: "done"}, provider, "claude-x", nil)
	def, err := l.Load(cardPath)
	require.NoError(t, err)

	wl, err := l.Build(context.Background(), def)
	require.NoError(t, err)
	defer wl.Close()
}
