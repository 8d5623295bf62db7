// Package llm defines the provider-agnostic model-client contract used by
// the Compaction Engine (C6), the DSL Call statement (C7), the Agent
// Factory (C8), and the standalone History Compactor (C12).
//
// Grounded on runtime/agent/model/model.go's Part/Message/Request/Response/
// Chunk/Client/Streamer shape, trimmed to the subset this runtime actually
// drives (no multimodal image/document/citation parts — those have no
// corresponding spec.md operation) and renamed where it clarifies the
// mapping to the orchestration domain (ModelClass kept, TokenUsage brought
// in line with runtime/session/model's field names).
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ConversationRole identifies the speaker of a Message.
type ConversationRole string

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// Part is a marker interface for message content blocks.
type Part interface{ isPart() }

// TextPart is plain text content.
type TextPart struct{ Text string }

// ThinkingPart carries provider-issued reasoning content.
type ThinkingPart struct {
	Text      string
	Signature string
}

// ToolUsePart declares a tool invocation requested by the assistant.
type ToolUsePart struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultPart carries a tool result attached to a user-role message.
type ToolResultPart struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextPart) isPart()       {}
func (ThinkingPart) isPart()   {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Message is one entry of the transcript passed to a model.
type Message struct {
	Role  ConversationRole
	Parts []Part
}

// ToolDefinition describes a tool exposed to the model, derived from a
// resolved tools.Handle (C5).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolChoiceMode controls how a Request constrains tool use.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice optionally constrains tool-use behavior.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ModelClass selects a model family when Model is left empty.
type ModelClass string

const (
	ModelClassDefault       ModelClass = "default"
	ModelClassHighReasoning ModelClass = "high-reasoning"
	ModelClassSmall         ModelClass = "small"
)

// TokenUsage mirrors session/model.TokenUsage so usage observed from a
// model call round-trips into the session's event log without translation.
type TokenUsage struct {
	Prompt     int
	Candidates int
	Total      int
}

// Request captures the inputs to a model invocation.
type Request struct {
	Model       string
	ModelClass  ModelClass
	Messages    []Message
	Temperature float32
	Tools       []ToolDefinition
	ToolChoice  *ToolChoice
	MaxTokens   int
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Content    []Message
	ToolCalls  []ToolUsePart
	Usage      TokenUsage
	StopReason string
}

// ChunkType classifies a streaming Chunk.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkThinking ChunkType = "thinking"
	ChunkToolCall ChunkType = "tool_call"
	ChunkUsage    ChunkType = "usage"
	ChunkStop     ChunkType = "stop"
)

// Chunk is one streaming event.
type Chunk struct {
	Type       ChunkType
	Text       string
	ToolCall   *ToolUsePart
	UsageDelta *TokenUsage
	StopReason string
}

// Client is the provider-agnostic model client every adapter implements.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (Streamer, error)
}

// Streamer delivers incremental model output. Callers must drain Recv
// until it returns io.EOF (or another terminal error) and then Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// ErrStreamingUnsupported indicates the adapter cannot stream.
var ErrStreamingUnsupported = errors.New("llm: streaming not supported")

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. It is not retried internally; callers (or the rate-limit
// middleware) decide policy.
var ErrRateLimited = errors.New("llm: rate limited")
