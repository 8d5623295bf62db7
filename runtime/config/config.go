// Package config assembles the handful of values a host embedding this
// runtime needs to configure before constructing its components: where
// sessions live, where the MCP server list is defined, and the compaction
// budget. It follows the teacher's own struct-literal-plus-functional-option
// idiom (its `runtime.Options`/`RunOption`) rather than environment-variable
// driven configuration — nothing in this runtime's core requires an env var.
package config

import (
	"github.com/streetrace-ai/streetrace-go/runtime/mcp"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// Config is the resolved set of values an embedder supplies once at
// startup. Every field has a usable zero-value-driven default; an embedder
// only needs to override what differs from it.
type Config struct {
	// SessionRoot is the directory the JSON session store reads/writes
	// under. Defaults to "./sessions".
	SessionRoot string
	// MCPConfigPath is the path to the MCP server list YAML. Defaults to
	// mcp.DefaultConfigPath() (~/.streetrace/mcp_servers.yaml).
	MCPConfigPath string
	// MaxTokens bounds the Compaction Engine's (C6) and standalone History
	// Compactor's (C12) context window when a model's own window cannot be
	// resolved. Zero means "use each component's own default"
	// (compaction.DefaultContextWindow / history.DefaultContextWindow).
	MaxTokens int
	// DefaultModel is the model identifier used where a workload or agent
	// definition does not name one explicitly.
	DefaultModel string
	// Logger is shared by every component this Config helps construct.
	// Defaults to telemetry.NewNoopLogger().
	Logger telemetry.Logger
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithSessionRoot overrides where the JSON session store reads/writes.
func WithSessionRoot(root string) Option {
	return func(c *Config) { c.SessionRoot = root }
}

// WithMCPConfigPath overrides the MCP server list YAML path.
func WithMCPConfigPath(path string) Option {
	return func(c *Config) { c.MCPConfigPath = path }
}

// WithMaxTokens overrides the compaction context-window fallback.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithDefaultModel overrides the fallback model identifier.
func WithDefaultModel(model string) Option {
	return func(c *Config) { c.DefaultModel = model }
}

// WithLogger overrides the shared logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// defaultSessionRoot mirrors the reference implementation's relative
// "./sessions" working-directory convention.
const defaultSessionRoot = "./sessions"

// New builds a Config, applying opts over defaults.
func New(opts ...Option) *Config {
	c := &Config{
		SessionRoot:   defaultSessionRoot,
		MCPConfigPath: mcp.DefaultConfigPath(),
		Logger:        telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadMCPServers reads and validates the MCP server list at c.MCPConfigPath.
func (c *Config) LoadMCPServers() ([]mcp.ServerConfig, error) {
	return mcp.LoadConfig(c.MCPConfigPath, c.Logger)
}
