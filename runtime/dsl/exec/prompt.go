package exec

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
)

// templateFuncs mirrors runtime/agent/runtime/agent_tools.go's
// CompileAgentToolTemplates helper FuncMap ("tojson", "join"), reused here
// for prompt rendering.
var templateFuncs = template.FuncMap{
	"tojson": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
	"join": strings.Join,
}

// renderPrompt renders prompt.Template against the WorkflowContext's vars
// plus an optional "input" binding and the context's last_result, per
// spec.md §4.5 "Call... obtain body(context) text". Unlike
// agent_tools.go's tool-message templates, DSL prompt vars are not all
// guaranteed bound, so this uses "missingkey=zero" rather than
// "missingkey=error": a missing var renders as its zero value instead of
// failing the whole Call.
func renderPrompt(wc *WorkflowContext, prompt ir.PromptSpec, input any) (string, error) {
	tmpl, err := template.New(prompt.Name).Funcs(templateFuncs).Option("missingkey=zero").Parse(prompt.Template)
	if err != nil {
		return "", fmt.Errorf("dsl: parse prompt %q: %w", prompt.Name, err)
	}

	data := make(map[string]any, len(wc.vars)+2)
	for k, v := range wc.vars {
		data[k] = v
	}
	if input != nil {
		data["input"] = input
	}
	data["last_result"] = wc.LastResult()

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("dsl: render prompt %q: %w", prompt.Name, err)
	}
	return sb.String(), nil
}

// enrichWithSchema appends a deterministic JSON-schema instruction after
// the rendered prompt text, per spec.md §4.5 "If a schema is attached,
// enrich the rendered prompt with a deterministic JSON-schema instruction
// appended after the user text (include the schema's JSON representation)".
func enrichWithSchema(promptText string, schema ir.SchemaDef) (string, error) {
	schemaText, err := schemaJSONText(schema)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"%s\n\nRespond with a single JSON object matching this JSON Schema, inside one fenced ```json code block:\n```json\n%s\n```",
		promptText, schemaText,
	), nil
}
