// Package model defines the StreetRace Event/Session data model (C1): an
// immutable, JSON-round-trippable event log plus keyed session state.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Part is a tagged union over the three event content kinds: plain text, a
// model-issued tool call, and a tool's response. It mirrors the
// interface+unexported-marker idiom used for sum types elsewhere in the
// pack (e.g. a transcript Part union), adapted to this spec's three kinds
// instead of four.
type Part interface {
	isPart()
}

// TextPart is a plain text content part.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// FunctionCallPart represents a model-issued tool invocation.
type FunctionCallPart struct {
	// ID correlates this call with its FunctionResponsePart and may be
	// empty. The Session Manager does not read it: it pairs a call with the
	// response that immediately follows it and compares their Names.
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func (FunctionCallPart) isPart() {}

// FunctionResponsePart represents the result of a tool invocation.
type FunctionResponsePart struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
}

func (FunctionResponsePart) isPart() {}

// partEnvelope is the on-disk shape for a Part: one JSON object carrying
// whichever fields are relevant to its kind. There is no explicit "type"
// discriminator in the wire format (matching the reference session file
// format), so decoding shape-sniffs the object's keys, the same technique
// the teacher's transcript package uses for its own Part union.
type partEnvelope struct {
	Text *string `json:"text,omitempty"`
}

// MarshalPart encodes a Part to its wire envelope.
func MarshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(partEnvelope{Text: &v.Text})
	case FunctionCallPart:
		return json.Marshal(struct {
			ID   string         `json:"id,omitempty"`
			Name string         `json:"name"`
			Args map[string]any `json:"args,omitempty"`
		}{ID: v.ID, Name: v.Name, Args: v.Args})
	case FunctionResponsePart:
		return json.Marshal(struct {
			ID       string `json:"id,omitempty"`
			Name     string `json:"name"`
			Response any    `json:"response"`
		}{ID: v.ID, Name: v.Name, Response: v.Response})
	default:
		return nil, fmt.Errorf("model: unknown part type %T", p)
	}
}

// UnmarshalPart decodes a wire envelope back into a concrete Part,
// shape-sniffing on which keys are present since the wire format carries no
// explicit discriminator.
func UnmarshalPart(raw json.RawMessage) (Part, error) {
	// Bare JSON string: treated as a text part for maximal leniency when
	// reading hand-edited or legacy session files.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return TextPart{Text: s}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("model: decode part: %w", err)
	}

	if _, ok := probe["response"]; ok {
		var fr FunctionResponsePart
		if err := json.Unmarshal(raw, &fr); err != nil {
			return nil, fmt.Errorf("model: decode function_response part: %w", err)
		}
		return fr, nil
	}
	if _, ok := probe["name"]; ok {
		var fc FunctionCallPart
		if err := json.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("model: decode function_call part: %w", err)
		}
		return fc, nil
	}
	if _, ok := probe["text"]; ok {
		var tp TextPart
		if err := json.Unmarshal(raw, &tp); err != nil {
			return nil, fmt.Errorf("model: decode text part: %w", err)
		}
		return tp, nil
	}
	return nil, fmt.Errorf("model: unrecognized part shape: %s", string(raw))
}
