package agentfactory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
)

// agentToolBinding wraps sub as a callable tool (spec.md §4.6 hierarchical
// "agent_tools" pattern: "each listed agent is wrapped as a callable
// tool; the parent invokes it like any other function-call tool").
//
// Grounded on runtime/agent/runtime/agent_tools.go's AgentToolConfig: the
// payload becomes the nested agent's user message (that file's
// PromptBuilder fallback, "PayloadToString(payload)"), and the nested
// run's final text is returned as the parent tool_result directly — this
// runtime has no per-tool Templates/Texts configuration surface to port
// since the IR carries no per-agent-tool prompt override, only the bare
// agent name.
func agentToolBinding(sub *Agent) *boundTool {
	return &boundTool{
		def: llm.ToolDefinition{
			Name:        sub.name,
			Description: fmt.Sprintf("Delegate a sub-task to the %q agent and return its response.", sub.name),
			InputSchema: json.RawMessage(`{"type":"object","properties":{"input":{"type":"string"}},"required":["input"]}`),
		},
		invoke: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			input := payloadToString(args)

			events, errc := sub.Run(ctx, input)
			var finalText string
			for e := range events {
				if e.Escalate {
					return nil, &escalation{message: e.Text()}
				}
				if e.IsFinal {
					finalText = e.Text()
				}
			}
			if err := <-errc; err != nil {
				return nil, fmt.Errorf("agent tool %q: %w", sub.name, err)
			}
			return json.Marshal(finalText)
		},
	}
}

// payloadToString extracts a nested agent's input from the parent's tool
// call arguments: the "input" field if the payload is a JSON object
// carrying one, otherwise the raw payload text verbatim.
func payloadToString(args json.RawMessage) string {
	var withInput struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal(args, &withInput); err == nil && withInput.Input != "" {
		return withInput.Input
	}
	return string(args)
}
