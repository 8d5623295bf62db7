package exec

import "github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"

// resolveModel implements spec.md §4.5's Call model resolution order:
// explicit arg > prompt's own model ref > models["main"] > "" (provider
// default). refOrLiteral resolves a name against program.Models, falling
// back to treating the name itself as a literal model identifier when no
// ref is registered under it ("looked up in models or taken literally").
func resolveModel(program *ir.Program, explicit, promptModel string) string {
	if explicit != "" {
		return refOrLiteral(program, explicit)
	}
	if promptModel != "" {
		return refOrLiteral(program, promptModel)
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

// resolveAgentModel implements spec.md §4.6's Agent Factory model
// resolution order, identical in shape to resolveModel but keyed off an
// agent's own Model field and its instruction prompt's Model ref instead
// of an explicit Call argument.
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
