package agentfactory

import (
	"context"
	"encoding/json"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
)

// escalateToolName is the synthetic tool every agent this factory builds
// carries so it can signal human-in-the-loop per spec.md §3's Event
// "escalate" flag / §4.5 RunAgent "on an escalation event". ADK's
// reference surface exposes an equivalent signal through a dedicated
// escalation action on tool context; this runtime reconstructs it as a
// plain callable tool since there is no ADK tool-context object here.
const escalateToolName = "escalate_to_human"

// escalation is a sentinel error a tool invoke function can return to
// signal human-in-the-loop; the conversational loop (agent.go) type-
// switches on it instead of treating it as an ordinary tool failure.
type escalation struct{ message string }

func (e *escalation) Error() string { return "agentfactory: escalation: " + e.message }

type escalateArgs struct {
	Message string `json:"message"`
}

func escalateTool() *boundTool {
	return &boundTool{
		def: llm.ToolDefinition{
			Name:        escalateToolName,
			Description: "Escalate to a human when the task cannot be completed without their input.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`),
		},
		invoke: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var a escalateArgs
			_ = json.Unmarshal(args, &a)
			return nil, &escalation{message: a.Message}
		},
	}
}
