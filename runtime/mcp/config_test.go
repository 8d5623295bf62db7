package mcp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/mcp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp_servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileYieldsEmpty(t *testing.T) {
	configs, err := mcp.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestLoadConfigParsesServers(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: fs
    command: npx
    args: ["-y", "server-filesystem"]
    env:
      FOO: bar
`)
	configs, err := mcp.LoadConfig(path, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "fs", configs[0].Name)
	assert.Equal(t, "npx", configs[0].Command)
	assert.Equal(t, []string{"-y", "server-filesystem"}, configs[0].Args)
	assert.True(t, configs[0].Enabled)
	assert.Equal(t, "stdio", configs[0].Transport)
}

func TestLoadConfigSkipsDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: fs
    command: a
  - name: fs
    command: b
`)
	configs, err := mcp.LoadConfig(path, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "a", configs[0].Command)
}

func TestLoadConfigDisablesUnsupportedTransport(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: remote
    command: a
    transport: sse
`)
	configs, err := mcp.LoadConfig(path, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.False(t, configs[0].Enabled)
}

func TestLoadConfigSkipsEntryMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: no-command
  - name: ok
    command: a
`)
	configs, err := mcp.LoadConfig(path, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "ok", configs[0].Name)
}

func TestLoadConfigMalformedYAMLErrors(t *testing.T) {
	path := writeConfig(t, "servers: [this is not valid: yaml: at all")
	_, err := mcp.LoadConfig(path, nil)
	require.Error(t, err)
}
