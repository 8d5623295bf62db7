// Package yamlworkload implements the YAML agent-card workload format
// (spec.md §4.7's first workload definition kind): a declarative agent
// description — name, description, model, instructions, a tool list, and
// optionally nested sub_agents — loaded into a runnable workload.Workload
// without any DSL compilation step.
//
// Grounded on
// original_source/.../tests/unit/agents/test_yaml_models.py (the
// yaml_models.py source module itself was not retrieved, only its test
// suite, so every field and validation rule here is read off observed
// behavior in that suite rather than off the source directly): the
// version/kind/name/description/model/instruction/global_instruction/
// prompt/tools/sub_agents/adk/attributes field set, the
// ${VAR} / ${VAR:-default} environment expansion syntax, the
// ^[_A-Za-z][_A-Za-z0-9]*$ name grammar, and the output_schema mutual
// exclusivity rules against tools and sub_agents.
package yamlworkload

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TransportType names an MCP server transport an inline tool's server
// config may declare.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
)

// StdioServerConfig launches an MCP server as a subprocess speaking the
// stdio transport. Command/Args/Env are env-expanded.
type StdioServerConfig struct {
	Type    TransportType     `yaml:"type"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// HttpServerConfig addresses an MCP server over HTTP or SSE. URL and
// Headers values are env-expanded. Timeout defaults to 10 (seconds).
type HttpServerConfig struct {
	Type    TransportType     `yaml:"type"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout int               `yaml:"timeout"`
}

// serverConfig is implemented by StdioServerConfig and HttpServerConfig;
// McpToolSpec.UnmarshalYAML picks between them by peeking the "type" field,
// the same discriminated-union shape pydantic's tagged union gives the
// original.
type serverConfig interface{ transportType() TransportType }

func (c StdioServerConfig) transportType() TransportType { return TransportStdio }
func (c HttpServerConfig) transportType() TransportType  { return c.Type }

// StreetraceToolSpec names a host-registered function tool by its
// implementing module and function — reduced, at Build time, to a builtin
// ref of "<module>.<function>" against the shared tool provider.
type StreetraceToolSpec struct {
	Module   string `yaml:"module"`
	Function string `yaml:"function"`
}

// McpToolSpec names a set of tools exposed by one MCP server. Server is
// informational (which transport/command this card expects the server to
// run as); the card format does not give this loader authority to spin the
// server up itself — resolution always goes through the shared MCP Client
// Manager (C4) by Name, which must already have that server configured and
// open.
type McpToolSpec struct {
	Name   string
	Server serverConfig
	Tools  []string
}

func (m *McpToolSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name   string   `yaml:"name"`
		Server yaml.Node `yaml:"server"`
		Tools  []string `yaml:"tools"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Tools = raw.Tools
	if raw.Server.Kind == 0 {
		return nil
	}
	var peek struct {
		Type TransportType `yaml:"type"`
	}
	if err := raw.Server.Decode(&peek); err != nil {
		return fmt.Errorf("yamlworkload: mcp server config: %w", err)
	}
	switch peek.Type {
	case TransportHTTP, TransportSSE:
		var cfg HttpServerConfig
		if err := raw.Server.Decode(&cfg); err != nil {
			return fmt.Errorf("yamlworkload: http server config: %w", err)
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = 10
		}
		m.Server = cfg
	default:
		var cfg StdioServerConfig
		if err := raw.Server.Decode(&cfg); err != nil {
			return fmt.Errorf("yamlworkload: stdio server config: %w", err)
		}
		cfg.Type = TransportStdio
		m.Server = cfg
	}
	return nil
}

// ToolSpec is one tools[] entry: exactly one of Streetrace or MCP must be
// set.
type ToolSpec struct {
	Streetrace *StreetraceToolSpec `yaml:"streetrace,omitempty"`
	MCP        *McpToolSpec        `yaml:"mcp,omitempty"`
}

func (t ToolSpec) validate() error {
	if t.Streetrace != nil && t.MCP != nil {
		return fmt.Errorf("tool spec cannot have both streetrace and mcp set")
	}
	if t.Streetrace == nil && t.MCP == nil {
		return fmt.Errorf("tool spec must have either streetrace or mcp set")
	}
	return nil
}

// AdkConfig carries the framework-specific knobs the original ports from
// ADK's LlmAgent constructor that don't fit anywhere else on the card.
// OutputSchema names a structured-output contract this agent's final
// response must conform to; mutually exclusive with Tools and SubAgents
// (spec.md §4.7).
type AdkConfig struct {
	OutputSchema string `yaml:"output_schema"`
}

// InlineAgentSpec wraps a nested agent definition under sub_agents[] (the
// card format nests agent cards directly rather than referencing them by
// name elsewhere).
type InlineAgentSpec struct {
	Agent *YamlAgentSpec `yaml:"agent"`
}

// YamlAgentSpec is one parsed agent card.
type YamlAgentSpec struct {
	Version           int               `yaml:"version"`
	Kind              string            `yaml:"kind"`
	Name              string            `yaml:"name"`
	Description       string            `yaml:"description"`
	Model             string            `yaml:"model"`
	Instruction       string            `yaml:"instruction"`
	GlobalInstruction string            `yaml:"global_instruction"`
	Prompt            string            `yaml:"prompt"`
	Tools             []ToolSpec        `yaml:"tools"`
	SubAgents         []InlineAgentSpec `yaml:"sub_agents"`
	Adk               AdkConfig         `yaml:"adk"`
	Attributes        map[string]any    `yaml:"attributes"`
}

var nameGrammar = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*$`)

// parseYamlAgentSpec decodes and validates one card document: applies
// defaults (version 1, kind "agent"), env-expands every string field
// except Name (recursively into nested sub_agents and tool server
// configs), validates the name grammar and the output_schema mutual
// exclusivity rules.
func parseYamlAgentSpec(data []byte) (*YamlAgentSpec, error) {
	var spec YamlAgentSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("yamlworkload: parse: %w", err)
	}
	if spec.Version == 0 {
		spec.Version = 1
	}
	if spec.Kind == "" {
		spec.Kind = "agent"
	}
	expandSpec(&spec)
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *YamlAgentSpec) validate() error {
	if s.Name == "" || !nameGrammar.MatchString(s.Name) {
		return fmt.Errorf("yamlworkload: invalid agent name %q (must match %s)", s.Name, nameGrammar.String())
	}
	if s.Adk.OutputSchema != "" && len(s.Tools) > 0 {
		return fmt.Errorf("yamlworkload: agent %q: output_schema cannot coexist with tools", s.Name)
	}
	if s.Adk.OutputSchema != "" && len(s.SubAgents) > 0 {
		return fmt.Errorf("yamlworkload: agent %q: output_schema cannot coexist with sub_agents", s.Name)
	}
	for i, t := range s.Tools {
		if err := t.validate(); err != nil {
			return fmt.Errorf("yamlworkload: agent %q: tools[%d]: %w", s.Name, i, err)
		}
	}
	for _, sub := range s.SubAgents {
		if sub.Agent == nil {
			return fmt.Errorf("yamlworkload: agent %q: sub_agents entry missing 'agent'", s.Name)
		}
		if err := sub.Agent.validate(); err != nil {
			return err
		}
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([_A-Za-z][_A-Za-z0-9]*)(:-([^}]*))?\}`)

// expandEnvVars renders ${VAR} and ${VAR:-default} references against the
// process environment, an existing (even empty) variable always taking
// precedence over a literal default.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

func expandSpec(s *YamlAgentSpec) {
	s.Model = expandEnvVars(s.Model)
	s.Description = expandEnvVars(s.Description)
	s.Instruction = expandEnvVars(s.Instruction)
	s.GlobalInstruction = expandEnvVars(s.GlobalInstruction)
	s.Prompt = expandEnvVars(s.Prompt)
	s.Adk.OutputSchema = expandEnvVars(s.Adk.OutputSchema)
	for i := range s.Tools {
		expandTool(&s.Tools[i])
	}
	for _, sub := range s.SubAgents {
		if sub.Agent != nil {
			expandSpec(sub.Agent)
		}
	}
}

func expandTool(t *ToolSpec) {
	if t.Streetrace != nil {
		t.Streetrace.Module = expandEnvVars(t.Streetrace.Module)
		t.Streetrace.Function = expandEnvVars(t.Streetrace.Function)
	}
	if t.MCP != nil {
		t.MCP.Name = expandEnvVars(t.MCP.Name)
		for i, name := range t.MCP.Tools {
			t.MCP.Tools[i] = expandEnvVars(name)
		}
		switch cfg := t.MCP.Server.(type) {
		case StdioServerConfig:
			cfg.Command = expandEnvVars(cfg.Command)
			for i, a := range cfg.Args {
				cfg.Args[i] = expandEnvVars(a)
			}
			for k, v := range cfg.Env {
				cfg.Env[k] = expandEnvVars(v)
			}
			t.MCP.Server = cfg
		case HttpServerConfig:
			cfg.URL = expandEnvVars(cfg.URL)
			for k, v := range cfg.Headers {
				cfg.Headers[k] = expandEnvVars(v)
			}
			t.MCP.Server = cfg
		}
	}
}

func builtinRef(t StreetraceToolSpec) string {
	return strings.TrimSuffix(t.Module, ".") + "." + t.Function
}
