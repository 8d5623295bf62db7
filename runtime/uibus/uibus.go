// Package uibus defines the UI Bus contract (C11): a typed, append-only,
// fire-and-forget dispatch of events from the Supervisor (C10) and the DSL
// runtime (C7) to whatever renderer a host application registers — a
// terminal, a web view, a log file. spec.md §6 fixes the event vocabulary;
// this package only fixes the Go shape of it.
//
// Grounded on runtime/agent/hooks.Bus's Publish/Register/Subscription shape
// (the fan-out mechanics), narrowed to match spec.md §6's "append-only;
// renderers are registered out of band" note: unlike the teacher's Bus,
// Dispatch here never returns an error to the caller — a renderer failure
// is the renderer's problem, not the dispatching agent run's, so the two
// concrete implementations (inmem, pulsebus) log and continue rather than
// propagating.
package uibus

import "github.com/streetrace-ai/streetrace-go/runtime/session/model"

// EventType names one of the typed events spec.md §6 enumerates.
type EventType string

const (
	EventADKEnvelope    EventType = "adk_envelope"
	EventLlmCall        EventType = "llm_call"
	EventLlmResponse    EventType = "llm_response"
	EventInfo           EventType = "info"
	EventWarn           EventType = "warn"
	EventErr            EventType = "error"
	EventMarkdown       EventType = "markdown"
	EventSessionsList   EventType = "sessions_list"
)

// Event is implemented by every concrete UI bus event. Renderers type-switch
// on the concrete type for structured access; Type() lets a generic
// renderer (e.g. the pulsebus envelope writer) tag a message without doing
// that switch itself.
type Event interface {
	Type() EventType
}

// Bus is the narrow contract the Supervisor and the DSL runtime depend on:
// fire-and-forget, typed dispatch. Concrete buses (inmem, pulsebus) add
// their own renderer-registration surface on top of this.
type Bus interface {
	Dispatch(event Event)
}

// ADKEnvelope wraps one agent-run event (spec.md §4.8 step 5's "wrap it as
// EventEnvelope"). DSL FlowEvents (LlmCall/LlmResponse below) are dispatched
// directly instead of being wrapped here.
type ADKEnvelope struct {
	Event model.Event
}

func (ADKEnvelope) Type() EventType { return EventADKEnvelope }

// LlmCall mirrors a DSL workflow's pre-call notification: which named
// prompt is about to be sent to which model.
type LlmCall struct {
	PromptName string
	Model      string
	PromptText string
}

func (LlmCall) Type() EventType { return EventLlmCall }

// LlmResponse mirrors a DSL workflow's post-call notification. IsFinal
// marks the response the Supervisor should treat as the turn's final
// response candidate (spec.md §4.8 step 5).
type LlmResponse struct {
	PromptName string
	Content    string
	IsFinal    bool
}

func (LlmResponse) Type() EventType { return EventLlmResponse }

// Info, Warn, Error, and Markdown are plain text notices a renderer formats
// according to its own conventions (spec.md §7 "the UI bus's renderers are
// responsible for formatting").
type Info struct{ Text string }

func (Info) Type() EventType { return EventInfo }

type Warn struct{ Text string }

func (Warn) Type() EventType { return EventWarn }

type Error struct{ Text string }

func (Error) Type() EventType { return EventErr }

type Markdown struct{ Text string }

func (Markdown) Type() EventType { return EventMarkdown }

// SessionSummary is one row of a SessionsList event.
type SessionSummary struct {
	ID             string
	LastUpdateTime string
}

// SessionsList asks a renderer to present the given app/user's session
// list (e.g. for a "/sessions" CLI command).
type SessionsList struct {
	AppName  string
	UserID   string
	Sessions []SessionSummary
}

func (SessionsList) Type() EventType { return EventSessionsList }
