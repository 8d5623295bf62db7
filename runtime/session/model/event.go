package model

import (
	"encoding/json"
	"time"
)

// TokenUsage reports token accounting for a single model turn. Total, when
// present, is authoritative; otherwise it is derived as Prompt+Candidates;
// otherwise it must be estimated (see runtime/compaction).
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Candidates int `json:"candidates_tokens"`
	Total      int `json:"total_tokens"`
}

// TotalOrDerived returns Total when it is non-zero, otherwise Prompt+Candidates.
func (u *TokenUsage) TotalOrDerived() int {
	if u == nil {
		return 0
	}
	if u.Total > 0 {
		return u.Total
	}
	return u.Prompt + u.Candidates
}

// Event is an immutable record of one step in a conversation: a user
// message, a model output, a tool call, or a tool result. Events have no
// identity beyond their position in a Session's event list.
type Event struct {
	Author        string      `json:"author"`
	Content       []Part      `json:"content,omitempty"`
	UsageMetadata *TokenUsage `json:"usage_metadata,omitempty"`
	// IsFinal mirrors the reference "is_final_response" predicate: true for
	// events that represent a terminal model turn (as opposed to an
	// intermediate tool-call or streaming partial).
	IsFinal bool `json:"is_final_response,omitempty"`
	// Escalate signals that an agent requires human input.
	Escalate bool `json:"escalate,omitempty"`
	// FlowNotice, when non-nil, marks this Event as a transient DSL
	// flow-level notice about a Call statement's model round trip (spec §4.5
	// Call, §6 LlmCallEvent/LlmResponseEvent) rather than genuine agent
	// conversation content. It is deliberately excluded from MarshalJSON: a
	// flow notice never reaches the Session Store, only the UI bus, so it
	// has no on-disk shape.
	FlowNotice *FlowNotice `json:"-"`
}

// FlowNotice carries a DSL Call statement's pre-call or post-call
// notification to whatever consumes a Workload's event stream. Exactly one
// of PromptText (pre-call) or Content (post-call) is populated, mirroring
// the reference implementation's separate LlmCallEvent/LlmResponseEvent
// types.
type FlowNotice struct {
	PromptName string
	Model      string
	PromptText string
	Content    string
	IsResponse bool
	IsFinal    bool
}

// HasContent reports whether the event carries any content parts.
func (e Event) HasContent() bool { return len(e.Content) > 0 }

// Text concatenates all TextPart content in the event, in order, skipping
// non-text parts. Used wherever the spec says "concatenated text" (final
// response capture, turn-squash assistant text, project-context seeding).
func (e Event) Text() string {
	var out string
	for _, p := range e.Content {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// FunctionCalls returns every FunctionCallPart in the event's content.
func (e Event) FunctionCalls() []FunctionCallPart {
	var out []FunctionCallPart
	for _, p := range e.Content {
		if fc, ok := p.(FunctionCallPart); ok {
			out = append(out, fc)
		}
	}
	return out
}

// FunctionResponses returns every FunctionResponsePart in the event's content.
func (e Event) FunctionResponses() []FunctionResponsePart {
	var out []FunctionResponsePart
	for _, p := range e.Content {
		if fr, ok := p.(FunctionResponsePart); ok {
			out = append(out, fr)
		}
	}
	return out
}

// HasFunctionCall reports whether any content part is a function call.
func (e Event) HasFunctionCall() bool { return len(e.FunctionCalls()) > 0 }

// HasFunctionResponse reports whether any content part is a function response.
func (e Event) HasFunctionResponse() bool { return len(e.FunctionResponses()) > 0 }

// IsToolEvent reports whether the event is a function call or response —
// i.e. not a "regular" event per the Session Manager's validate_session
// state machine (spec.md §4.2).
func (e Event) IsToolEvent() bool { return e.HasFunctionCall() || e.HasFunctionResponse() }

// IsFlowNotice reports whether this Event is a synthetic DSL flow-level
// notice rather than genuine session content (see FlowNotice).
func (e Event) IsFlowNotice() bool { return e.FlowNotice != nil }

// eventJSON is the on-disk shape of an Event: identical field names to
// Event, except Content is raw JSON so each Part can be shape-sniffed on
// decode.
type eventJSON struct {
	Author        string            `json:"author"`
	Content       []json.RawMessage `json:"content,omitempty"`
	UsageMetadata *TokenUsage       `json:"usage_metadata,omitempty"`
	IsFinal       bool              `json:"is_final_response,omitempty"`
	Escalate      bool              `json:"escalate,omitempty"`
}

// MarshalJSON implements json.Marshaler, encoding each content Part through
// MarshalPart so the tagged union survives the round trip.
func (e Event) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(e.Content))
	for i, p := range e.Content {
		b, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		raws[i] = b
	}
	return json.Marshal(eventJSON{
		Author:        e.Author,
		Content:       raws,
		UsageMetadata: e.UsageMetadata,
		IsFinal:       e.IsFinal,
		Escalate:      e.Escalate,
	})
}

// UnmarshalJSON implements json.Unmarshaler, decoding each content entry
// through UnmarshalPart's shape-sniffing decoder. A decode failure on any
// individual part fails the whole event (the caller — the Session Store —
// treats a session-level decode failure as "session absent", per
// spec.md §4.1/§6).
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts := make([]Part, len(raw.Content))
	for i, rm := range raw.Content {
		p, err := UnmarshalPart(rm)
		if err != nil {
			return err
		}
		parts[i] = p
	}
	e.Author = raw.Author
	e.Content = parts
	e.UsageMetadata = raw.UsageMetadata
	e.IsFinal = raw.IsFinal
	e.Escalate = raw.Escalate
	return nil
}

// Session is the persistent conversational log plus keyed state for one
// (app, user, session_id) triple. Identity is (AppName, UserID, ID);
// mutation happens only through append-event or wholesale replace-events,
// never by mutating Events in place from outside the session/store package.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []Event        `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

// Clone returns a deep-enough copy of the session suitable for handing to a
// caller without risking aliasing of the store's internal state (the
// in-memory cache's defensive-clone-on-read/write idiom, grounded on the
// teacher's inmem session store).
func (s Session) Clone() Session {
	clone := s
	clone.State = make(map[string]any, len(s.State))
	for k, v := range s.State {
		clone.State[k] = v
	}
	clone.Events = make([]Event, len(s.Events))
	copy(clone.Events, s.Events)
	return clone
}
