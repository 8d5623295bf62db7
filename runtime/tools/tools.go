// Package tools implements the Tool Provider (C5): resolution of the IR's
// named tool specs (spec.md §3 "tools: mapping name -> tool spec") into
// callable handles, routing builtin refs to a host-registered function and
// mcp refs through the MCP Client Manager (C4).
//
// Grounded on runtime/agent/tools/tools.go's ToolSpec/TypeSpec shape (kept
// as the schema/codec metadata carrier) and FieldIssue validation-issue
// taxonomy, adapted from Goa's compile-time-generated tool codecs to a
// runtime resolution step over santhosh-tekuri/jsonschema/v6.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/streetrace-ai/streetrace-go/runtime/mcp"
)

// Kind distinguishes the two tool-spec forms spec.md §3 allows.
type Kind int

const (
	// KindBuiltin resolves against the host's registered function toolset.
	KindBuiltin Kind = iota
	// KindMCP resolves against a live MCP server.
	KindMCP
)

// Spec is the IR's tool spec: builtin(ref) or mcp(url). The MCP form
// carries a server name and a tool name, since the MCP Client Manager has
// no notion of URLs; MCPSpec takes both as given and parses nothing.
type Spec struct {
	Kind       Kind
	Ref        string // builtin ref
	ServerName string // mcp server name
	ToolName   string // mcp tool name
}

// BuiltinSpec constructs a builtin tool spec.
func BuiltinSpec(ref string) Spec { return Spec{Kind: KindBuiltin, Ref: ref} }

// MCPSpec constructs an mcp tool spec routed to serverName/toolName.
func MCPSpec(serverName, toolName string) Spec {
	return Spec{Kind: KindMCP, ServerName: serverName, ToolName: toolName}
}

// Handle is a resolved, callable tool: a name, description, JSON-schema
// argument validator, and an Invoke function uniform across both builtin
// and MCP origins so the DSL runtime (C7) never needs to know which kind
// it is holding.
type Handle struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	// RawSchema is the uncompiled JSON Schema document backing Schema, kept
	// alongside it so callers that must describe the tool to a model (the
	// Agent Factory, C8) can surface an input schema without having to
	// re-derive one from the compiled validator graph.
	RawSchema json.RawMessage
	Invoke    func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// BuiltinFunc is a host-provided tool implementation.
type BuiltinFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// BuiltinToolset describes one registered builtin tool.
type BuiltinToolset struct {
	Ref         string
	Description string
	Schema      json.RawMessage
	Fn          BuiltinFunc
}

// FieldIssue represents a single validation issue for a tool call's
// arguments, following goa's error kind taxonomy for generated tool codecs.
type FieldIssue struct {
	Field      string
	Constraint string
	Allowed    []string
	MinLen     *int
	MaxLen     *int
	Pattern    string
	Format     string
}

// ValidationError aggregates FieldIssues for a tool-argument validation
// failure.
type ValidationError struct {
	Tool   string
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: %d validation issue(s) calling %q", len(e.Issues), e.Tool)
}

// Provider resolves Specs into Handles. Exactly one Provider backs one
// Agent Factory instantiation (spec.md §4.8 "tool resolution").
type Provider struct {
	builtins map[string]BuiltinToolset
	mcpMgr   *mcp.Manager
	compiler *jsonschema.Compiler
}

// New constructs a Provider. mcpMgr may be nil if no workload in this
// process uses mcp() tool specs.
func New(mcpMgr *mcp.Manager) *Provider {
	return &Provider{
		builtins: make(map[string]BuiltinToolset),
		mcpMgr:   mcpMgr,
		compiler: jsonschema.NewCompiler(),
	}
}

// RegisterBuiltin adds a host-provided tool, resolvable by builtin(ref)
// specs whose ref matches t.Ref.
func (p *Provider) RegisterBuiltin(t BuiltinToolset) error {
	if _, exists := p.builtins[t.Ref]; exists {
		return fmt.Errorf("tools: builtin %q already registered", t.Ref)
	}
	p.builtins[t.Ref] = t
	return nil
}

// Resolve builds a callable Handle for spec.
func (p *Provider) Resolve(ctx context.Context, spec Spec) (Handle, error) {
	switch spec.Kind {
	case KindBuiltin:
		return p.resolveBuiltin(spec.Ref)
	case KindMCP:
		return p.resolveMCP(ctx, spec.ServerName, spec.ToolName)
	default:
		return Handle{}, fmt.Errorf("tools: unknown spec kind %d", spec.Kind)
	}
}

func (p *Provider) resolveBuiltin(ref string) (Handle, error) {
	t, ok := p.builtins[ref]
	if !ok {
		return Handle{}, fmt.Errorf("tools: no builtin registered for ref %q", ref)
	}

	schema, err := p.compileSchema(ref, t.Schema)
	if err != nil {
		return Handle{}, err
	}

	return Handle{
		Name:        ref,
		Description: t.Description,
		Schema:      schema,
		RawSchema:   t.Schema,
		Invoke:      t.Fn,
	}, nil
}

func (p *Provider) resolveMCP(ctx context.Context, serverName, toolName string) (Handle, error) {
	if p.mcpMgr == nil {
		return Handle{}, fmt.Errorf("tools: mcp tool %q/%q requested but no MCP manager configured", serverName, toolName)
	}

	var descriptor *mcp.ToolDescriptor
	for _, t := range p.mcpMgr.ListAllTools(ctx) {
		if t.ServerName == serverName && t.Name == toolName {
			td := t
			descriptor = &td
			break
		}
	}
	if descriptor == nil {
		return Handle{}, fmt.Errorf("tools: mcp tool %q not found on server %q", toolName, serverName)
	}

	var schema *jsonschema.Schema
	if len(descriptor.InputSchema) > 0 {
		s, err := p.compileSchema(serverName+"/"+toolName, descriptor.InputSchema)
		if err != nil {
			return Handle{}, err
		}
		schema = s
	}

	mgr := p.mcpMgr
	return Handle{
		Name:        toolName,
		Description: descriptor.Description,
		Schema:      schema,
		RawSchema:   descriptor.InputSchema,
		Invoke: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			res, err := mgr.CallToolOn(ctx, serverName, mcp.CallRequest{Tool: toolName, Arguments: args})
			if err != nil {
				return nil, err
			}
			if res.IsError {
				return nil, fmt.Errorf("tools: mcp tool %q reported an error: %s", toolName, string(res.Result))
			}
			return res.Result, nil
		},
	}, nil
}

func (p *Provider) compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	resourceName := "mem://tools/" + name
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tools: invalid schema for %q: %w", name, err)
	}
	if err := p.compiler.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("tools: add schema resource %q: %w", name, err)
	}
	schema, err := p.compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tools: compile schema %q: %w", name, err)
	}
	return schema, nil
}

// Validate checks args against the handle's schema, translating
// jsonschema's validation errors into FieldIssues. A handle with no schema
// always validates.
func (h Handle) Validate(args json.RawMessage) error {
	if h.Schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return &ValidationError{Tool: h.Name, Issues: []FieldIssue{{Field: "$", Constraint: "invalid_format"}}}
	}
	if err := h.Schema.Validate(v); err != nil {
		return &ValidationError{Tool: h.Name, Issues: issuesFromSchemaError(err)}
	}
	return nil
}

func issuesFromSchemaError(err error) []FieldIssue {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []FieldIssue{{Field: "$", Constraint: "invalid_field_type"}}
	}
	var issues []FieldIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := "$"
			if len(e.InstanceLocation) > 0 {
				field = e.InstanceLocation[len(e.InstanceLocation)-1]
			}
			issues = append(issues, FieldIssue{Field: field, Constraint: "invalid_field_type"})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return issues
}
