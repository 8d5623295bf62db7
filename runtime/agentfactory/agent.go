package agentfactory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// maxTurns bounds one Agent.Run call's model-call/tool-call loop so a
// model that never stops requesting tools cannot hang a workflow run.
// There is no equivalent constant in original_source/ (ADK's run loop has
// no hard cap); this runtime adds one defensively since nothing upstream
// of Run enforces a turn budget of its own.
const maxTurns = 25

// Agent is a fully resolved, executable runtime agent: a model, a
// rendered system instruction, and the tools it can call — including, if
// applicable, a transfer_to_agent dispatch tool (coordinator pattern) and
// any agent_tools wrappers (hierarchical pattern).
type Agent struct {
	name        string
	model       string
	instruction string
	client      llm.Client
	logger      telemetry.Logger

	tools      []*boundTool
	toolIndex  map[string]*boundTool
	subAgents  []*Agent
	agentTools []*Agent
}

func (a *Agent) addTool(t *boundTool) {
	a.tools = append(a.tools, t)
	a.toolIndex[t.def.Name] = t
}

func (a *Agent) findSubAgent(name string) *Agent {
	for _, s := range a.subAgents {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (a *Agent) toolDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(a.tools))
	for i, t := range a.tools {
		defs[i] = t.def
	}
	return defs
}

// Run executes one conversational turn: the agent's system instruction
// plus input as the seed messages, looping model-call -> tool-execution
// until the model returns no further tool calls (spec.md §4.5 RunAgent:
// "execute it against an in-memory session ..., stream its events
// upward"). A transfer_to_agent call permanently hands the remainder of
// the turn to the named sub-agent, mirroring ADK's "delegate" semantics
// (sub-agents keep the same message history but answer with their own
// instruction and tool set from then on).
func (a *Agent) Run(ctx context.Context, input string) (<-chan model.Event, <-chan error) {
	events := make(chan model.Event, 4)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		active := a
		messages := []llm.Message{
			{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: input}}},
		}

		for turn := 0; turn < maxTurns; turn++ {
			// The system instruction is re-derived from the active agent every
			// turn (not baked into messages once) so a transfer_to_agent call
			// mid-run hands the rest of the conversation to the new agent's own
			// instruction and tool set, not the coordinator's.
			reqMessages := append([]llm.Message{
				{Role: llm.RoleSystem, Parts: []llm.Part{llm.TextPart{Text: active.instruction}}},
			}, messages...)
			resp, err := active.client.Complete(ctx, llm.Request{
				Model:    active.model,
				Messages: reqMessages,
				Tools:    active.toolDefinitions(),
			})
			if err != nil {
				errc <- fmt.Errorf("agentfactory: agent %q: %w", active.name, err)
				return
			}

			text := responseText(resp)
			if len(resp.ToolCalls) == 0 {
				events <- model.Event{
					Author:  active.name,
					IsFinal: true,
					Content: []model.Part{model.TextPart{Text: text}},
				}
				return
			}

			assistantParts := make([]model.Part, 0, len(resp.ToolCalls)+1)
			if text != "" {
				assistantParts = append(assistantParts, model.TextPart{Text: text})
			}
			for _, tc := range resp.ToolCalls {
				assistantParts = append(assistantParts, model.FunctionCallPart{
					ID: tc.ID, Name: tc.Name, Args: argsToMap(tc.Input),
				})
			}
			events <- model.Event{Author: active.name, Content: assistantParts}

			assistantMsg := llm.Message{Role: llm.RoleAssistant, Parts: toLLMParts(resp.ToolCalls, text)}
			messages = append(messages, assistantMsg)

			escalated, nextActive, resultMsg, err := active.executeToolCalls(ctx, resp.ToolCalls, events)
			if err != nil {
				errc <- err
				return
			}
			if escalated {
				return
			}
			messages = append(messages, resultMsg)
			active = nextActive
		}

		events <- model.Event{
			Author:  active.name,
			IsFinal: true,
			Content: []model.Part{model.TextPart{Text: "agent exceeded maximum tool-call turns without a final response"}},
		}
	}()

	return events, errc
}

// executeToolCalls runs every tool call from one model turn, in order,
// then emits a single event carrying one function_response part per call,
// and returns the message to
// append to history plus which agent should own the next turn (transfer
// may have switched it). If an escalation occurred, the loop stops: the
// caller must not issue another model call.
func (a *Agent) executeToolCalls(ctx context.Context, calls []llm.ToolUsePart, events chan<- model.Event) (escalated bool, next *Agent, resultMsg llm.Message, err error) {
	next = a
	parts := make([]model.Part, 0, len(calls))
	llmParts := make([]llm.Part, 0, len(calls))

	for _, tc := range calls {
		bt, ok := a.toolIndex[tc.Name]
		if !ok {
			return false, a, llm.Message{}, fmt.Errorf("agentfactory: agent %q: unknown tool %q", a.name, tc.Name)
		}

		out, invokeErr := bt.invoke(ctx, tc.Input)
		if invokeErr != nil {
			if esc, ok := invokeErr.(*escalation); ok {
				events <- model.Event{
					Author:   a.name,
					Escalate: true,
					Content:  []model.Part{model.TextPart{Text: esc.message}},
				}
				return true, a, llm.Message{}, nil
			}
			out = []byte(fmt.Sprintf("%q", invokeErr.Error()))
		}
		if targetName, ok := parseTransfer(tc.Name, out); ok {
			if target := a.findSubAgent(targetName); target != nil {
				next = target
			} else {
				a.logger.Warn(ctx, "agentfactory: transfer_to_agent named unknown sub-agent", "agent", a.name, "target", targetName)
			}
		}

		var response any
		_ = json.Unmarshal(out, &response)
		parts = append(parts, model.FunctionResponsePart{ID: tc.ID, Name: tc.Name, Response: response})
		llmParts = append(llmParts, llm.ToolResultPart{ToolUseID: tc.ID, Content: string(out)})
	}

	events <- model.Event{Author: a.name, Content: parts}
	return false, next, llm.Message{Role: llm.RoleUser, Parts: llmParts}, nil
}

func responseText(resp llm.Response) string {
	var out string
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if tp, ok := p.(llm.TextPart); ok {
				out += tp.Text
			}
		}
	}
	return out
}

func toLLMParts(calls []llm.ToolUsePart, text string) []llm.Part {
	parts := make([]llm.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, llm.TextPart{Text: text})
	}
	for _, tc := range calls {
		parts = append(parts, tc)
	}
	return parts
}

func argsToMap(raw json.RawMessage) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}
