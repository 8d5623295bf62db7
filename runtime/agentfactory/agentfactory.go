// Package agentfactory implements the Agent Factory (C8): it turns an IR
// agent entry into an executable runtime agent supporting the two
// compositional patterns spec.md §4.6 names — coordinator/dispatcher via
// sub_agents and hierarchical via agent_tools — and satisfies
// runtime/dsl/exec's AgentRunner seam so the DSL Workflow Runtime (C7) can
// drive it without any compile-time dependency on this package.
//
// Grounded on original_source/.../workloads/dsl_agent_factory.py's
// DslAgentFactory: the same depth-first create_agent/resolve_sub_agents/
// resolve_agent_tools/close_agent_recursive shape, ported from ADK's
// LlmAgent+AgentTool delegation model (which this runtime has no
// dependency on) to a self-contained conversational loop over
// runtime/llm.Client and runtime/tools.Provider. The "transfer to
// sub-agent" and "escalate to human" behaviors ADK wires in as implicit,
// framework-level tools are reconstructed explicitly here (see
// transfer.go, escalate.go) since there is no ADK runtime underneath.
package agentfactory

import (
	"context"
	"fmt"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/tools"
)

// Factory builds and memoizes runtime agents from a Program's agent table.
// One Factory instance backs one workload instantiation (spec.md §4.6
// "Resolution order"; §4.8 supervisor obtains one workload per turn).
type Factory struct {
	program      *ir.Program
	toolProvider *tools.Provider
	client       llm.Client
	defaultModel string
	logger       telemetry.Logger

	mu     sync.Mutex
	built  map[string]*Agent
	visit  map[string]bool // cycle guard during a single Build call
	errors map[string]error
}

// New constructs a Factory. defaultModel is the caller-provided fallback
// used when neither a prompt nor models["main"] resolves a model
// (spec.md §4.6 "Resolution order (model)" step 3). logger may be nil.
func New(program *ir.Program, toolProvider *tools.Provider, client llm.Client, defaultModel string, logger telemetry.Logger) *Factory {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Factory{
		program:      program,
		toolProvider: toolProvider,
		client:       client,
		defaultModel: defaultModel,
		logger:       logger,
		built:        make(map[string]*Agent),
	}
}

// RunAgent implements exec.AgentRunner: build (or reuse) the named agent
// and execute it against a fresh in-memory turn seeded with input.
func (f *Factory) RunAgent(ctx context.Context, spec ir.AgentSpec, input string) (<-chan model.Event, <-chan error) {
	agent, err := f.Build(ctx, spec.Name)
	if err != nil {
		events := make(chan model.Event)
		errc := make(chan error, 1)
		close(events)
		errc <- err
		return events, errc
	}
	return agent.Run(ctx, input)
}

// Build constructs the named agent and its full dependency tree
// (sub_agents and agent_tools, recursively, depth-first), memoizing each
// built Agent by name so a diamond-shaped reference graph is only built
// once. Cycles are assumed absent per spec.md §4.6 ("runtime may assume
// acyclicity") but are defended against defensively to avoid a stack
// overflow on a malformed Program.
func (f *Factory) Build(ctx context.Context, name string) (*Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visit == nil {
		f.visit = make(map[string]bool)
	}
	return f.build(ctx, name)
}

func (f *Factory) build(ctx context.Context, name string) (*Agent, error) {
	if a, ok := f.built[name]; ok {
		return a, nil
	}
	if f.visit[name] {
		return nil, fmt.Errorf("agentfactory: cycle detected building agent %q", name)
	}
	spec, ok := f.program.Agents[name]
	if !ok {
		return nil, fmt.Errorf("agentfactory: unknown agent %q", name)
	}
	f.visit[name] = true
	defer delete(f.visit, name)

	instruction, err := f.resolveInstruction(spec)
	if err != nil {
		return nil, fmt.Errorf("agentfactory: agent %q instruction: %w", name, err)
	}
	resolvedModel := resolveAgentModel(f.program, spec)
	if resolvedModel == "" {
		resolvedModel = f.defaultModel
	}

	agent := &Agent{
		name:        name,
		model:       resolvedModel,
		instruction: instruction,
		client:      f.client,
		logger:      f.logger,
		toolIndex:   make(map[string]*boundTool),
	}

	for _, toolName := range spec.Tools {
		bt, err := f.resolveTool(ctx, toolName)
		if err != nil {
			return nil, fmt.Errorf("agentfactory: agent %q: %w", name, err)
		}
		agent.addTool(bt)
	}

	for _, subName := range spec.SubAgents {
		sub, err := f.build(ctx, subName)
		if err != nil {
			return nil, fmt.Errorf("agentfactory: agent %q sub_agent %q: %w", name, subName, err)
		}
		agent.subAgents = append(agent.subAgents, sub)
	}
	if len(agent.subAgents) > 0 {
		agent.addTool(transferTool(agent))
	}

	for _, toolAgentName := range spec.AgentTools {
		sub, err := f.build(ctx, toolAgentName)
		if err != nil {
			return nil, fmt.Errorf("agentfactory: agent %q agent_tool %q: %w", name, toolAgentName, err)
		}
		agent.addTool(agentToolBinding(sub))
		agent.agentTools = append(agent.agentTools, sub)
	}

	agent.addTool(escalateTool())

	if f.built == nil {
		f.built = make(map[string]*Agent)
	}
	f.built[name] = agent
	return agent, nil
}

func (f *Factory) resolveTool(ctx context.Context, name string) (*boundTool, error) {
	spec, ok := f.program.Tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if f.toolProvider == nil {
		return nil, fmt.Errorf("tool %q requested but no tool provider configured", name)
	}
	var tspec tools.Spec
	switch spec.Kind {
	case "builtin":
		tspec = tools.BuiltinSpec(spec.Ref)
	case "mcp":
		tspec = tools.MCPSpec(spec.ServerName, spec.ToolName)
	default:
		return nil, fmt.Errorf("tool %q has unknown kind %q", name, spec.Kind)
	}
	handle, err := f.toolProvider.Resolve(ctx, tspec)
	if err != nil {
		return nil, err
	}
	return boundToolFromHandle(handle), nil
}
