// Adapter wrapping openai/openai-go behind the llm.Client contract.
// Grounded on features/model/openai/client.go's shape (a narrow
// ChatClient seam, a single DefaultModel, Complete/Stream), ported from the
// reference's sashabaranov/go-openai surface to the official SDK's
// Chat Completions service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatClient is the subset of the official SDK used by the adapter.
type OpenAIChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	DefaultModel string
	Temperature  float64
}

// OpenAIClient implements Client via the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat OpenAIChatClient
	opt  OpenAIOptions
}

// NewOpenAIClient builds an adapter from a chat-completions client.
func NewOpenAIClient(chat OpenAIChatClient, opt OpenAIOptions) (*OpenAIClient, error) {
	if chat == nil {
		return nil, errors.New("llm: openai chat client is required")
	}
	if strings.TrimSpace(opt.DefaultModel) == "" {
		return nil, errors.New("llm: openai default model is required")
	}
	return &OpenAIClient{chat: chat, opt: opt}, nil
}

// NewOpenAIClientFromAPIKey builds an adapter using the default HTTP client.
func NewOpenAIClientFromAPIKey(apiKey, defaultModel string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIClient(&c.Chat.Completions, OpenAIOptions{DefaultModel: defaultModel})
}

func (c *OpenAIClient) resolveModel(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.opt.DefaultModel
}

func encodeOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		text := concatenateText(m.Parts)
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}

func concatenateText(parts []Part) string {
	var sb strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			sb.WriteString(v.Text)
		case ToolResultPart:
			sb.WriteString(v.Content)
		}
	}
	return sb.String()
}

func encodeOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = jsonUnmarshalLoose(t.InputSchema, &schema)
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  schema,
			},
		})
	}
	return out
}

// Complete issues a non-streaming chat-completions call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("llm: openai request requires messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    c.resolveModel(req),
		Messages: encodeOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeOpenAITools(req.Tools)
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = openai.Float(float64(t))
	} else if c.opt.Temperature > 0 {
		params.Temperature = openai.Float(c.opt.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isOpenAIRateLimited(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("llm: openai chat completion: %w", err)
	}
	return translateOpenAIResponse(resp), nil
}

// Stream is not implemented by this adapter.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}

func translateOpenAIResponse(resp *openai.ChatCompletion) Response {
	if len(resp.Choices) == 0 {
		return Response{}
	}
	choice := resp.Choices[0]
	var content []Message
	if choice.Message.Content != "" {
		content = append(content, Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: choice.Message.Content}}})
	}
	var toolCalls []ToolUsePart
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, ToolUsePart{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: []byte(tc.Function.Arguments),
		})
	}
	return Response{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: TokenUsage{
			Prompt:     int(resp.Usage.PromptTokens),
			Candidates: int(resp.Usage.CompletionTokens),
			Total:      int(resp.Usage.TotalTokens),
		},
		StopReason: string(choice.FinishReason),
	}
}

func isOpenAIRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
