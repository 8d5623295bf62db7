package agentfactory

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
)

// resolveInstruction implements spec.md §4.6's "Resolution order
// (instruction)": look up agents[name].instruction (a prompt name),
// render that prompt against a minimal context, use the result as the
// agent's system instruction. An agent with no instruction prompt gets an
// empty system instruction rather than an error — sub-agents in a
// delegate-only coordinator pattern sometimes carry no prompt of their
// own, inheriting behavior entirely from their tools.
//
// Grounded on runtime/agent/runtime/agent_tools.go's CompileAgentToolTemplates
// text/template usage, same as runtime/dsl/exec's prompt rendering
// (runtime/dsl/exec/prompt.go); "minimal context" here means no vars at
// all, since an agent's instruction is rendered once at construction
// time, not per DSL-workflow-context invocation.
func (f *Factory) resolveInstruction(spec ir.AgentSpec) (string, error) {
	if spec.Instruction == "" {
		return "", nil
	}
	prompt, ok := f.program.Prompts[spec.Instruction]
	if !ok {
		return "", fmt.Errorf("unknown instruction prompt %q", spec.Instruction)
	}
	tmpl, err := template.New(spec.Instruction).Option("missingkey=zero").Parse(prompt.Template)
	if err != nil {
		return "", fmt.Errorf("parsing instruction prompt %q: %w", spec.Instruction, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]any{}); err != nil {
		return "", fmt.Errorf("rendering instruction prompt %q: %w", spec.Instruction, err)
	}
	return sb.String(), nil
}
