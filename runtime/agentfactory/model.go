package agentfactory

import "github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"

// resolveAgentModel implements spec.md §4.6's Agent Factory model
// resolution order, preceded by the agent's own Model when it is set:
// (0) agent.Model, looked up in models or taken literally; (1) the
// resolved instruction prompt's own model ref, looked up in models or
// taken literally; (2) models["main"]; (3) empty, letting the caller's
// default apply. Identical in shape to
// runtime/dsl/exec's unexported resolveModel/resolveAgentModel — kept as
// its own small copy here rather than imported across the C7/C8 package
// boundary, since both are direct, independent renderings of the same
// spec.md prose and neither component should depend on the other's
// internals.
func resolveAgentModel(program *ir.Program, agent ir.AgentSpec) string {
	if agent.Model != "" {
		return refOrLiteral(program, agent.Model)
	}
	if prompt, ok := program.Prompts[agent.Instruction]; ok && prompt.Model != "" {
		return refOrLiteral(program, prompt.Model)
	}
	if main, ok := program.Models["main"]; ok {
		if main.Model != "" {
			return main.Model
		}
		return main.Name
	}
	return ""
}

func refOrLiteral(program *ir.Program, name string) string {
	if ref, ok := program.Models[name]; ok {
		if ref.Model != "" {
			return ref.Model
		}
		return ref.Name
	}
	return name
}
