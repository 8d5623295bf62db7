package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streetrace-ai/streetrace-go/runtime/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := config.New()
	assert.Equal(t, "./sessions", c.SessionRoot)
	assert.NotEmpty(t, c.MCPConfigPath)
	assert.NotNil(t, c.Logger)
	assert.Zero(t, c.MaxTokens)
}

func TestNewAppliesOptions(t *testing.T) {
	c := config.New(
		config.WithSessionRoot("/tmp/sessions"),
		config.WithMCPConfigPath("/tmp/mcp.yaml"),
		config.WithMaxTokens(4096),
		config.WithDefaultModel("gpt-test"),
	)
	assert.Equal(t, "/tmp/sessions", c.SessionRoot)
	assert.Equal(t, "/tmp/mcp.yaml", c.MCPConfigPath)
	assert.Equal(t, 4096, c.MaxTokens)
	assert.Equal(t, "gpt-test", c.DefaultModel)
}

func TestLoadMCPServersOnMissingFileReturnsEmpty(t *testing.T) {
	c := config.New(config.WithMCPConfigPath("/nonexistent/mcp_servers.yaml"))
	servers, err := c.LoadMCPServers()
	assert.NoError(t, err)
	assert.Empty(t, servers)
}
