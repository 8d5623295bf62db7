// Adapter wrapping anthropics/anthropic-sdk-go behind the llm.Client
// contract. Grounded on features/model/anthropic/client.go: a
// MessagesClient-shaped seam so tests can substitute a fake, model-class
// resolution with a configured default/high/small triple, and translation
// of Complete responses back to the generic shapes (Stream is unsupported).
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// jsonUnmarshalLoose decodes raw into v, treating an empty payload as a
// no-op rather than an error (tool schemas and tool-call inputs are
// frequently absent).
func jsonUnmarshalLoose(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// AnthropicMessagesClient is the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService or a test double.
type AnthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicOptions configures the Anthropic adapter.
type AnthropicOptions struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// AnthropicClient implements Client on top of the Claude Messages API.
type AnthropicClient struct {
	msg AnthropicMessagesClient
	opt AnthropicOptions
}

// NewAnthropicClient builds an adapter from a Messages client and options.
func NewAnthropicClient(msg AnthropicMessagesClient, opt AnthropicOptions) (*AnthropicClient, error) {
	if msg == nil {
		return nil, errors.New("llm: anthropic messages client is required")
	}
	if opt.DefaultModel == "" {
		return nil, errors.New("llm: anthropic default model is required")
	}
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = 4096
	}
	return &AnthropicClient{msg: msg, opt: opt}, nil
}

// NewAnthropicClientFromAPIKey builds an adapter using the default
// Anthropic HTTP client, reading ANTHROPIC_API_KEY-style defaults.
func NewAnthropicClientFromAPIKey(apiKey, defaultModel string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicClient(&c.Messages, AnthropicOptions{DefaultModel: defaultModel})
}

func (c *AnthropicClient) resolveModel(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case ModelClassHighReasoning:
		if c.opt.HighModel != "" {
			return c.opt.HighModel
		}
	case ModelClassSmall:
		if c.opt.SmallModel != "" {
			return c.opt.SmallModel
		}
	}
	return c.opt.DefaultModel
}

func (c *AnthropicClient) prepareParams(req Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("llm: anthropic request requires messages")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opt.MaxTokens
	}

	var system []sdk.TextBlockParam
	messages := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(TextPart); ok && t.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: t.Text})
				}
			}
			continue
		}
		messages = append(messages, encodeAnthropicMessage(m))
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.resolveModel(req)),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if t := req.Temperature; t == 0 {
		t = float32(c.opt.Temperature)
		if t > 0 {
			params.Temperature = sdk.Float(float64(t))
		}
	} else {
		params.Temperature = sdk.Float(float64(t))
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeAnthropicTools(req.Tools)
	}
	return &params, nil
}

func encodeAnthropicMessage(m Message) sdk.MessageParam {
	role := sdk.MessageParamRoleUser
	if m.Role == RoleAssistant {
		role = sdk.MessageParamRoleAssistant
	}
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextPart:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case ToolUsePart:
			var input any
			_ = jsonUnmarshalLoose(v.Input, &input)
			blocks = append(blocks, sdk.NewToolUseBlock(v.ID, input, v.Name))
		case ToolResultPart:
			blocks = append(blocks, sdk.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		}
	}
	return sdk.MessageParam{Role: role, Content: blocks}
}

func encodeAnthropicTools(tools []ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema sdk.ToolInputSchemaParam
		_ = jsonUnmarshalLoose(t.InputSchema, &schema)
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

// Complete issues a non-streaming Messages.New call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return Response{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isAnthropicRateLimited(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("llm: anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg), nil
}

// Stream is not supported by this adapter and always returns
// ErrStreamingUnsupported; no caller in this repository uses Stream, all
// model calls go through Complete.
func (c *AnthropicClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}

func translateAnthropicResponse(msg *sdk.Message) Response {
	var content []Message
	var toolCalls []ToolUsePart
	var text string
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			text += b.Text
		case sdk.ToolUseBlock:
			toolCalls = append(toolCalls, ToolUsePart{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	if text != "" {
		content = append(content, Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}})
	}
	return Response{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: TokenUsage{
			Prompt:     int(msg.Usage.InputTokens),
			Candidates: int(msg.Usage.OutputTokens),
			Total:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		StopReason: string(msg.StopReason),
	}
}

func isAnthropicRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
