package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// DefaultConfigPath mirrors the reference manager's
// ~/.streetrace/mcp_servers.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".streetrace", "mcp_servers.yaml")
	}
	return filepath.Join(home, ".streetrace", "mcp_servers.yaml")
}

// ServerConfig is one entry of the mcp_servers.yaml "servers" list.
// Transport is currently limited in practice to "stdio"; any other value is
// accepted but the server is disabled (see validateServerList).
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Enabled   bool              `yaml:"enabled"`
	Transport string            `yaml:"transport"`
}

type rawConfigFile struct {
	Servers []map[string]any `yaml:"servers"`
}

// LoadConfig reads and validates the server list at path. A missing file or
// one with no "servers" list yields an empty, valid configuration rather
// than an error — only an unreadable file or a malformed YAML document is
// an error.
func LoadConfig(path string, logger telemetry.Logger) ([]ServerConfig, error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	ctx := context.Background()
	raw, err := readYAMLConfig(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return validateServerList(ctx, raw, logger), nil
}

func readYAMLConfig(ctx context.Context, path string, logger telemetry.Logger) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn(ctx, "mcp config file not found", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("mcp: read config %s: %w", path, err)
	}

	var doc rawConfigFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mcp: parse config %s: %w", path, err)
	}
	if doc.Servers == nil {
		logger.Warn(ctx, "mcp config file missing servers list", "path", path)
		return nil, nil
	}
	return doc.Servers, nil
}

// validateServerList decodes each raw entry into a ServerConfig, skipping
// entries with duplicate names (first occurrence wins) and disabling any
// server whose transport isn't "stdio", each with a logged warning — never
// a hard failure, since one bad entry shouldn't take down the whole fleet.
func validateServerList(ctx context.Context, raw []map[string]any, logger telemetry.Logger) []ServerConfig {
	seen := make(map[string]bool)
	var out []ServerConfig

	for i, entry := range raw {
		cfg, err := decodeServerConfig(entry)
		if err != nil {
			logger.Warn(ctx, "mcp: skipping invalid server config", "index", i, "error", err.Error())
			continue
		}
		if seen[cfg.Name] {
			logger.Warn(ctx, "mcp: skipping duplicate server config", "index", i, "name", cfg.Name)
			continue
		}
		if cfg.Transport != "stdio" && cfg.Enabled {
			logger.Warn(ctx, "mcp: disabling server with unsupported transport",
				"name", cfg.Name, "transport", cfg.Transport)
			cfg.Enabled = false
		}
		seen[cfg.Name] = true
		out = append(out, cfg)
	}
	return out
}

func decodeServerConfig(entry map[string]any) (ServerConfig, error) {
	cfg := ServerConfig{Enabled: true, Transport: "stdio"}

	name, ok := entry["name"].(string)
	if !ok || name == "" {
		return ServerConfig{}, fmt.Errorf("missing required field 'name'")
	}
	cfg.Name = name

	command, ok := entry["command"].(string)
	if !ok || command == "" {
		return ServerConfig{}, fmt.Errorf("missing required field 'command'")
	}
	cfg.Command = command

	if rawArgs, ok := entry["args"].([]any); ok {
		for _, a := range rawArgs {
			if s, ok := a.(string); ok {
				cfg.Args = append(cfg.Args, s)
			}
		}
	}

	if rawEnv, ok := entry["env"].(map[string]any); ok {
		cfg.Env = make(map[string]string, len(rawEnv))
		for k, v := range rawEnv {
			if s, ok := v.(string); ok {
				cfg.Env[k] = s
			}
		}
	}

	if enabled, ok := entry["enabled"].(bool); ok {
		cfg.Enabled = enabled
	}
	if transport, ok := entry["transport"].(string); ok && transport != "" {
		cfg.Transport = transport
	}

	return cfg, nil
}

// EnvSlice renders Env as NAME=VALUE pairs suitable for exec.Cmd.Env,
// appended to the current process environment.
func (c ServerConfig) EnvSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return append(os.Environ(), out...)
}
