package agentfactory

import (
	"context"
	"encoding/json"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/tools"
)

// boundTool is the internal, uniform shape every callable an Agent exposes
// to the model reduces to: a resolved tools.Handle (builtin or mcp), an
// agent wrapped as a tool (hierarchical pattern), the synthetic
// transfer_to_agent dispatch tool (coordinator pattern), or the synthetic
// escalate_to_human tool. Keeping one shape for all four means the
// conversational loop (agent.go) never branches on origin.
type boundTool struct {
	def    llm.ToolDefinition
	invoke func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

func boundToolFromHandle(h tools.Handle) *boundTool {
	schema := h.RawSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return &boundTool{
		def: llm.ToolDefinition{
			Name:        h.Name,
			Description: h.Description,
			InputSchema: schema,
		},
		invoke: h.Invoke,
	}
}
