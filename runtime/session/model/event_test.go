package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

func TestEventRoundTrip(t *testing.T) {
	events := []model.Event{
		{
			Author: "user",
			Content: []model.Part{
				model.TextPart{Text: "hello"},
			},
		},
		{
			Author: "assistant",
			Content: []model.Part{
				model.FunctionCallPart{ID: "c1", Name: "search", Args: map[string]any{"q": "go"}},
			},
			UsageMetadata: &model.TokenUsage{Prompt: 10, Candidates: 5, Total: 15},
		},
		{
			Author: "assistant",
			Content: []model.Part{
				model.FunctionResponsePart{ID: "c1", Name: "search", Response: map[string]any{"ok": true}},
			},
			IsFinal: true,
		},
	}

	data, err := json.Marshal(events)
	require.NoError(t, err)

	var got []model.Event
	require.NoError(t, json.Unmarshal(data, &got))

	require.Len(t, got, len(events))
	assert.Equal(t, "hello", got[0].Text())
	assert.True(t, got[1].HasFunctionCall())
	assert.Equal(t, "search", got[1].FunctionCalls()[0].Name)
	assert.True(t, got[2].HasFunctionResponse())
	assert.True(t, got[2].IsFinal)
}

func TestEventTextConcatenatesOnlyTextParts(t *testing.T) {
	e := model.Event{
		Author: "assistant",
		Content: []model.Part{
			model.TextPart{Text: "a"},
			model.FunctionCallPart{Name: "x"},
			model.TextPart{Text: "b"},
		},
	}
	assert.Equal(t, "ab", e.Text())
}

func TestTokenUsageTotalOrDerived(t *testing.T) {
	assert.Equal(t, 15, (&model.TokenUsage{Prompt: 10, Candidates: 5, Total: 15}).TotalOrDerived())
	assert.Equal(t, 15, (&model.TokenUsage{Prompt: 10, Candidates: 5}).TotalOrDerived())
	assert.Equal(t, 0, (*model.TokenUsage)(nil).TotalOrDerived())
}

func TestUnmarshalPartBareString(t *testing.T) {
	p, err := model.UnmarshalPart(json.RawMessage(`"just text"`))
	require.NoError(t, err)
	tp, ok := p.(model.TextPart)
	require.True(t, ok)
	assert.Equal(t, "just text", tp.Text)
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := model.Session{
		ID:     "s1",
		State:  map[string]any{"k": "v"},
		Events: []model.Event{{Author: "user", Content: []model.Part{model.TextPart{Text: "hi"}}}},
	}
	clone := s.Clone()
	clone.State["k"] = "changed"
	clone.Events[0] = model.Event{Author: "mutated"}

	assert.Equal(t, "v", s.State["k"])
	assert.Equal(t, "user", s.Events[0].Author)
}
