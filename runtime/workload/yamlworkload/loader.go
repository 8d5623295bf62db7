package yamlworkload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/streetrace-ai/streetrace-go/runtime/agentfactory"
	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/tools"
	"github.com/streetrace-ai/streetrace-go/runtime/workload"
)

// Loader implements workload.Loader for the YAML agent-card format.
type Loader struct {
	client       llm.Client
	toolProvider *tools.Provider
	defaultModel string
	logger       telemetry.Logger

	mu    sync.Mutex
	specs map[string]*YamlAgentSpec // path -> parsed card, filled by Load
}

// New constructs a Loader. toolProvider may be nil for cards with no tools.
func New(client llm.Client, toolProvider *tools.Provider, defaultModel string, logger telemetry.Logger) *Loader {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Loader{
		client:       client,
		toolProvider: toolProvider,
		defaultModel: defaultModel,
		logger:       logger,
		specs:        make(map[string]*YamlAgentSpec),
	}
}

func (l *Loader) Format() workload.Format { return workload.FormatYAML }

// Identify reports whether path looks like a YAML agent card: a .yaml/.yml
// file whose top-level document carries a "name" field and is not an MCP
// servers.yaml (which carries a top-level "servers" list instead).
func (l *Loader) Identify(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var peek struct {
		Name    string `yaml:"name"`
		Servers []any  `yaml:"servers"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return false
	}
	return peek.Name != "" && peek.Servers == nil
}

// Load parses and validates the card at path, caching the parsed spec for
// Build.
func (l *Loader) Load(path string) (workload.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workload.Definition{}, fmt.Errorf("yamlworkload: read %s: %w", path, err)
	}
	spec, err := parseYamlAgentSpec(data)
	if err != nil {
		return workload.Definition{}, fmt.Errorf("yamlworkload: %s: %w", path, err)
	}

	l.mu.Lock()
	l.specs[path] = spec
	l.mu.Unlock()

	return workload.Definition{
		Name:        spec.Name,
		Description: spec.Description,
		Format:      workload.FormatYAML,
		Path:        path,
	}, nil
}

// Build compiles def's cached card (and its nested sub_agents, recursively)
// into a throwaway ir.Program and constructs an agentfactory.Agent from it.
func (l *Loader) Build(ctx context.Context, def workload.Definition) (workload.Workload, error) {
	l.mu.Lock()
	spec, ok := l.specs[def.Path]
	l.mu.Unlock()
	if !ok {
		data, err := os.ReadFile(def.Path)
		if err != nil {
			return nil, fmt.Errorf("yamlworkload: read %s: %w", def.Path, err)
		}
		spec, err = parseYamlAgentSpec(data)
		if err != nil {
			return nil, err
		}
	}

	program := &ir.Program{
		Prompts: make(map[string]ir.PromptSpec),
		Agents:  make(map[string]ir.AgentSpec),
		Tools:   make(map[string]ir.ToolSpec),
	}
	if err := compileAgent(program, spec); err != nil {
		return nil, err
	}

	factory := agentfactory.New(program, l.toolProvider, l.client, l.defaultModel, l.logger)
	agent, err := factory.Build(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("yamlworkload: building agent %q: %w", spec.Name, err)
	}

	return &yamlWorkload{agent: agent, defaultPrompt: spec.Prompt}, nil
}

// compileAgent flattens spec and its sub_agents/tools into program's
// symbol tables, the way the DSL compiler this runtime has no equivalent of
// would have for an agent declared inline in workflow source.
func compileAgent(program *ir.Program, spec *YamlAgentSpec) error {
	if _, done := program.Agents[spec.Name]; done {
		return nil
	}

	irSpec := ir.AgentSpec{Name: spec.Name, Model: spec.Model}

	instruction := spec.GlobalInstruction
	if spec.Instruction != "" {
		if instruction != "" {
			instruction += "\n\n"
		}
		instruction += spec.Instruction
	}
	if instruction != "" {
		promptName := spec.Name + "__instruction"
		program.Prompts[promptName] = ir.PromptSpec{Name: promptName, Template: instruction}
		irSpec.Instruction = promptName
	}

	for i, t := range spec.Tools {
		toolName, err := compileTool(program, spec.Name, i, t)
		if err != nil {
			return err
		}
		irSpec.Tools = append(irSpec.Tools, toolName)
	}

	for _, sub := range spec.SubAgents {
		if err := compileAgent(program, sub.Agent); err != nil {
			return err
		}
		irSpec.SubAgents = append(irSpec.SubAgents, sub.Agent.Name)
	}

	program.Agents[spec.Name] = irSpec
	return nil
}

func compileTool(program *ir.Program, agentName string, index int, t ToolSpec) (string, error) {
	switch {
	case t.Streetrace != nil:
		name := builtinRef(*t.Streetrace)
		program.Tools[name] = ir.ToolSpec{Name: name, Kind: "builtin", Ref: name}
		return name, nil
	case t.MCP != nil:
		if len(t.MCP.Tools) != 1 {
			// A card's mcp tool entry may name several server-side tools at
			// once, but the IR's per-agent tool list wants one tool name per
			// entry, so entries must be split one-tool-per-entry upstream.
			return "", fmt.Errorf("agent %q: tools[%d]: mcp tool spec must name exactly one tool (got %d)",
				agentName, index, len(t.MCP.Tools))
		}
		toolName := t.MCP.Tools[0]
		name := t.MCP.Name + "." + toolName
		program.Tools[name] = ir.ToolSpec{Name: name, Kind: "mcp", ServerName: t.MCP.Name, ToolName: toolName}
		return name, nil
	default:
		return "", fmt.Errorf("agent %q: tools[%d]: empty tool spec", agentName, index)
	}
}

type yamlWorkload struct {
	agent         *agentfactory.Agent
	defaultPrompt string
}

func (w *yamlWorkload) RunAsync(ctx context.Context, _ *model.Session, newMessage string) (<-chan model.Event, <-chan error) {
	if newMessage == "" {
		newMessage = w.defaultPrompt
	}
	return w.agent.Run(ctx, newMessage)
}

func (w *yamlWorkload) Close() error { return w.agent.Close() }
