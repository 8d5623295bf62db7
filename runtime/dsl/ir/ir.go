// Package ir defines the compiled form a DSL workflow source file reduces
// to before execution: flows made of statements over a small expression
// language, plus the models/prompts/schemas/agents/tools tables a Program
// carries alongside them.
//
// Grounded on spec.md §4.5's "Statement execution" and "Schema semantics"
// prose (there is no Go analogue to read this off of — the reference
// compiler, original_source/.../dsl/compiler.py, targets Python bytecode
// through a lark grammar + AST + codegen pipeline that has no equivalent in
// this runtime; what is ported here is the *execution semantics* that
// pipeline's generated code exercises against
// original_source/.../dsl/runtime/context.py's WorkflowContext, not the
// pipeline itself).
package ir

// Program is a compiled workflow unit: the symbol tables a Flow's
// statements resolve names against, plus the flows themselves. "main" is
// the conventional entry flow name but callers may execute any flow by
// name (spec.md §4.5 "RunAgent(... is_flow=true)" can target any of them).
type Program struct {
	Models  map[string]ModelRef
	Prompts map[string]PromptSpec
	Schemas map[string]SchemaDef
	Agents  map[string]AgentSpec
	Tools   map[string]ToolSpec
	Flows   map[string]Flow
}

// ModelRef names a concrete model selection, resolved by literal id or by
// provider+model pair. Flows and agents reference these by name; "main" is
// the conventional default model ref per spec.md §4.5/§4.6's resolution
// order ("models[\"main\"]").
type ModelRef struct {
	Name     string
	Provider string
	Model    string
}

// PromptSpec is a named, renderable instruction/prompt template, optionally
// tied to a schema (for structured Call output) and a preferred model ref.
type PromptSpec struct {
	Name     string
	Template string // text/template source
	Schema   string // schema name, empty if unstructured
	Model    string // model ref name, empty if caller/flow decides
}

// SchemaBaseType is one of the four JSON-schema-like field kinds spec.md
// §4.5 "Schema semantics" names.
type SchemaBaseType string

const (
	SchemaString SchemaBaseType = "string"
	SchemaInt    SchemaBaseType = "int"
	SchemaFloat  SchemaBaseType = "float"
	SchemaBool   SchemaBaseType = "bool"
)

// SchemaField is one field of a SchemaDef. Unknown BaseTypes default to
// SchemaString at compile time (callers should normalize before handing a
// SchemaDef to the executor).
type SchemaField struct {
	Name       string
	BaseType   SchemaBaseType
	IsList     bool
	IsOptional bool
}

// SchemaDef is a named structured-output contract a Call statement can
// attach to its prompt. JSONSchema renders the field table into the JSON
// Schema document the executor embeds in the enriched prompt and validates
// responses against.
type SchemaDef struct {
	Name   string
	Fields []SchemaField
}

// ToolSpec names one of the tool kinds runtime/tools.Spec resolves,
// carried here only by name+kind so the DSL/IR layer stays independent of
// the Tool Provider's resolution machinery until RunAgent/Agent Factory
// time.
type ToolSpec struct {
	Name       string
	Kind       string // "builtin" or "mcp"
	Ref        string // builtin ref
	ServerName string // mcp server name
	ToolName   string // mcp tool name
}

// AgentSpec is an IR agent entry (spec.md §4.6): the Agent Factory turns
// one of these into an executable runtime agent.
type AgentSpec struct {
	Name        string
	Model       string // model ref name, empty if resolved via Instruction/models["main"]
	Instruction string // prompt name rendered as the system instruction
	Tools       []string
	SubAgents   []string // coordinator/dispatcher pattern
	AgentTools  []string // hierarchical pattern
	OutputKey   string   // session-state slot name from the source; no runtime package reads it
}

// Flow is one compiled workflow entry point: a named, parameterized
// sequence of statements sharing one WorkflowContext arena.
type Flow struct {
	Name   string
	Params []string
	Body   []Statement
}
