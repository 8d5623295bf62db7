package agentfactory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
)

// transferToolName is the synthetic tool ADK implicitly exposes on any
// LlmAgent carrying sub_agents. This runtime has no ADK underneath, so
// the dispatch the coordinator/dispatcher pattern (spec.md §4.6) needs is
// reconstructed explicitly as a regular callable tool instead.
const transferToolName = "transfer_to_agent"

type transferArgs struct {
	AgentName string `json:"agent_name"`
}

type transferResult struct {
	TransferredTo string `json:"transferred_to"`
}

// transferTool builds the synthetic transfer_to_agent tool for a
// coordinator agent, one call per sub-agent name it was built with.
func transferTool(coordinator *Agent) *boundTool {
	names := make([]string, len(coordinator.subAgents))
	for i, s := range coordinator.subAgents {
		names[i] = s.name
	}
	description := fmt.Sprintf(
		"Transfer the remainder of this conversation to a specialized sub-agent. Available agents: %s.",
		strings.Join(names, ", "),
	)
	schema := fmt.Sprintf(`{"type":"object","properties":{"agent_name":{"type":"string","enum":[%s]}},"required":["agent_name"]}`,
		quotedList(names))

	return &boundTool{
		def: llm.ToolDefinition{
			Name:        transferToolName,
			Description: description,
			InputSchema: json.RawMessage(schema),
		},
		invoke: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var a transferArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, fmt.Errorf("transfer_to_agent: invalid arguments: %w", err)
			}
			if coordinator.findSubAgent(a.AgentName) == nil {
				return nil, fmt.Errorf("transfer_to_agent: unknown sub-agent %q", a.AgentName)
			}
			return json.Marshal(transferResult{TransferredTo: a.AgentName})
		},
	}
}

// parseTransfer extracts the target agent name from a transfer_to_agent
// tool's output, if toolName is in fact the transfer tool.
func parseTransfer(toolName string, out json.RawMessage) (string, bool) {
	if toolName != transferToolName {
		return "", false
	}
	var r transferResult
	if err := json.Unmarshal(out, &r); err != nil || r.TransferredTo == "" {
		return "", false
	}
	return r.TransferredTo, true
}

func quotedList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		b, _ := json.Marshal(n)
		quoted[i] = string(b)
	}
	return strings.Join(quoted, ",")
}
