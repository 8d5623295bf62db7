package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/llm"
)

// --- Anthropic adapter ---

type fakeAnthropicMessages struct {
	captured sdk.MessageNewParams
	resp     *sdk.Message
	err      error
}

func (f *fakeAnthropicMessages) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.captured = body
	return f.resp, f.err
}

func TestAnthropicCompleteTranslatesResponse(t *testing.T) {
	fake := &fakeAnthropicMessages{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "hello there"},
			},
			Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 5},
			StopReason: sdk.StopReasonEndTurn,
		},
	}
	client, err := llm.NewAnthropicClient(fake, llm.AnthropicOptions{DefaultModel: "claude-x"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Parts: []llm.Part{llm.TextPart{Text: "be terse"}}},
			{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hello there", resp.Content[0].Parts[0].(llm.TextPart).Text)
	assert.Equal(t, 10, resp.Usage.Prompt)
	assert.Equal(t, 5, resp.Usage.Candidates)
	assert.Equal(t, 15, resp.Usage.Total)
	assert.Equal(t, string(sdk.StopReasonEndTurn), resp.StopReason)

	assert.Equal(t, sdk.Model("claude-x"), fake.captured.Model)
	require.Len(t, fake.captured.System, 1)
	assert.Equal(t, "be terse", fake.captured.System[0].Text)
}

func TestAnthropicCompleteRejectsEmptyMessages(t *testing.T) {
	fake := &fakeAnthropicMessages{}
	client, err := llm.NewAnthropicClient(fake, llm.AnthropicOptions{DefaultModel: "claude-x"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{})
	require.Error(t, err)
}

func TestAnthropicStreamUnsupported(t *testing.T) {
	fake := &fakeAnthropicMessages{}
	client, err := llm.NewAnthropicClient(fake, llm.AnthropicOptions{DefaultModel: "claude-x"})
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser}}})
	require.ErrorIs(t, err, llm.ErrStreamingUnsupported)
}

func TestNewAnthropicClientRequiresDefaultModel(t *testing.T) {
	_, err := llm.NewAnthropicClient(&fakeAnthropicMessages{}, llm.AnthropicOptions{})
	require.Error(t, err)
}

// --- OpenAI adapter ---

type fakeOpenAIChat struct {
	captured openai.ChatCompletionNewParams
	resp     *openai.ChatCompletion
	err      error
}

func (f *fakeOpenAIChat) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.captured = params
	return f.resp, f.err
}

func TestOpenAICompleteTranslatesResponse(t *testing.T) {
	fake := &fakeOpenAIChat{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{
					Message:      openai.ChatCompletionMessage{Content: "answer"},
					FinishReason: "stop",
				},
			},
			Usage: openai.CompletionUsage{PromptTokens: 3, CompletionTokens: 7, TotalTokens: 10},
		},
	}
	client, err := llm.NewOpenAIClient(fake, llm.OpenAIOptions{DefaultModel: "gpt-x"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "answer", resp.Content[0].Parts[0].(llm.TextPart).Text)
	assert.Equal(t, 3, resp.Usage.Prompt)
	assert.Equal(t, 7, resp.Usage.Candidates)
	assert.Equal(t, 10, resp.Usage.Total)
	assert.Equal(t, "gpt-x", fake.captured.Model)
}

func TestOpenAIRateLimitWrapped(t *testing.T) {
	fake := &fakeOpenAIChat{err: &openai.Error{StatusCode: 429}}
	client, err := llm.NewOpenAIClient(fake, llm.OpenAIOptions{DefaultModel: "gpt-x"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestNewOpenAIClientRequiresDefaultModel(t *testing.T) {
	_, err := llm.NewOpenAIClient(&fakeOpenAIChat{}, llm.OpenAIOptions{})
	require.Error(t, err)
}

// --- rate limiter ---

type fakeClusterMap struct {
	values map[string]string
}

func newFakeClusterMap() *fakeClusterMap {
	return &fakeClusterMap{values: map[string]string{}}
}

func (m *fakeClusterMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *fakeClusterMap) SetIfNotExists(ctx context.Context, key, value string) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *fakeClusterMap) TestAndSet(ctx context.Context, key, test, value string) (string, error) {
	cur, ok := m.values[key]
	if !ok || cur != test {
		return cur, nil
	}
	m.values[key] = value
	return value, nil
}

type stubClient struct {
	err error
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, s.err
}

func (s *stubClient) Stream(ctx context.Context, req llm.Request) (llm.Streamer, error) {
	return nil, llm.ErrStreamingUnsupported
}

func TestRateLimiterBacksOffOnRateLimitedError(t *testing.T) {
	cluster := newFakeClusterMap()
	limiter := llm.NewAdaptiveRateLimiter(llm.RateLimiterOptions{InitialTPM: 4000, Cluster: cluster, Key: "anthropic"})
	wrapped := limiter.Middleware()(&stubClient{err: llm.ErrRateLimited})

	_, err := wrapped.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.True(t, errors.Is(err, llm.ErrRateLimited))
	// The budget is halved (4000 * 0.5) and published to the cluster map.
	assert.Equal(t, "2000", cluster.values["anthropic"])
}

func TestRateLimiterSeedsClusterBudget(t *testing.T) {
	cluster := newFakeClusterMap()
	llm.NewAdaptiveRateLimiter(llm.RateLimiterOptions{InitialTPM: 4000, Cluster: cluster, Key: "anthropic"})

	v, ok := cluster.Get("anthropic")
	require.True(t, ok)
	assert.Equal(t, "4000", v)
}

func TestRateLimiterAdoptsLowerClusterBudget(t *testing.T) {
	cluster := newFakeClusterMap()
	cluster.values["anthropic"] = "1000"
	limiter := llm.NewAdaptiveRateLimiter(llm.RateLimiterOptions{InitialTPM: 4000, Cluster: cluster, Key: "anthropic"})
	wrapped := limiter.Middleware()(&stubClient{})

	_, err := wrapped.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.NoError(t, err)
	// The adopted 1000 budget is probed up 10% after the first success and
	// published back: 1100 (an unadopted 4000 budget would give 4400).
	assert.Equal(t, "1100", cluster.values["anthropic"])
}

// --- core types ---

func TestToolUsePartCarriesRawInput(t *testing.T) {
	p := llm.ToolUsePart{ID: "1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(p.Input, &decoded))
	assert.Equal(t, "go", decoded["q"])
}
