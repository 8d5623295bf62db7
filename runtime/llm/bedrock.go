// Adapter wrapping the AWS Bedrock Converse API behind the llm.Client
// contract. Grounded on features/model/bedrock/client.go: split
// system-vs-conversational messages, translate tool schemas into Bedrock's
// ToolConfiguration, and map Converse output (text + tool_use blocks) back
// to the generic shapes. Trimmed relative to the reference: no
// document/citation handling (no spec.md operation needs it) and no
// streaming (ConverseStream), since this runtime drives compaction and the
// DSL Call statement through Complete only.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
)

// BedrockRuntimeClient is the subset of the AWS Bedrock runtime client used
// by the adapter, satisfied by *bedrockruntime.Client.
type BedrockRuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOptions configures the Bedrock adapter.
type BedrockOptions struct {
	Runtime      BedrockRuntimeClient
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// BedrockClient implements Client via the Bedrock Converse API.
type BedrockClient struct {
	opt BedrockOptions
}

// NewBedrockClient builds an adapter from the given options.
func NewBedrockClient(opt BedrockOptions) (*BedrockClient, error) {
	if opt.Runtime == nil {
		return nil, errors.New("llm: bedrock runtime client is required")
	}
	if opt.DefaultModel == "" {
		return nil, errors.New("llm: bedrock default model id is required")
	}
	return &BedrockClient{opt: opt}, nil
}

func (c *BedrockClient) resolveModel(req Request) string {
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

func encodeBedrockMessages(msgs []Message) ([]brtypes.SystemContentBlock, []brtypes.Message) {
	var system []brtypes.SystemContentBlock
	conversation := make([]brtypes.Message, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(TextPart); ok && t.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Text})
				}
			}
			continue
		}

		role := brtypes.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}

		var blocks []brtypes.ContentBlock
		for _, p := range m.Parts {
			switch v := p.(type) {
			case TextPart:
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
			case ToolUsePart:
				var input document.Interface
				if len(v.Input) > 0 {
					var decoded any
					_ = json.Unmarshal(v.Input, &decoded)
					input = document.NewLazyDocument(decoded)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{ToolUseId: aws.String(v.ID), Name: aws.String(v.Name), Input: input},
				})
			case ToolResultPart:
				status := brtypes.ToolResultStatusSuccess
				if v.IsError {
					status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(v.ToolUseID),
						Status:    status,
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: v.Content}},
					},
				})
			}
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	return system, conversation
}

func encodeBedrockTools(tools []ToolDefinition) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		var schema any
		_ = jsonUnmarshalLoose(t.InputSchema, &schema)
		specs = append(specs, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

// Complete issues a single-turn Converse call.
func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("llm: bedrock request requires messages")
	}
	system, conversation := encodeBedrockMessages(req.Messages)

	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int32(c.opt.MaxTokens)
	}
	inferCfg := &brtypes.InferenceConfiguration{}
	if maxTokens > 0 {
		inferCfg.MaxTokens = aws.Int32(maxTokens)
	}
	if t := req.Temperature; t > 0 {
		inferCfg.Temperature = aws.Float32(t)
	} else if c.opt.Temperature > 0 {
		inferCfg.Temperature = aws.Float32(c.opt.Temperature)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.resolveModel(req)),
		Messages:        conversation,
		System:          system,
		InferenceConfig: inferCfg,
		ToolConfig:      encodeBedrockTools(req.Tools),
	}

	out, err := c.opt.Runtime.Converse(ctx, input)
	if err != nil {
		if isBedrockThrottled(err) {
			return Response{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("llm: bedrock converse: %w", err)
	}
	return translateBedrockResponse(out), nil
}

// Stream is not implemented by this adapter; ConverseStream would require
// an event-stream reader not yet exercised by any SPEC_FULL.md component.
func (c *BedrockClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}

func translateBedrockResponse(out *bedrockruntime.ConverseOutput) Response {
	var response Response
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if ok {
		var text string
		for _, block := range msgOut.Value.Content {
			switch b := block.(type) {
			case *brtypes.ContentBlockMemberText:
				text += b.Value
			case *brtypes.ContentBlockMemberToolUse:
				raw, _ := document.NewLazyDocument(b.Value.Input).MarshalSmithyDocument()
				response.ToolCalls = append(response.ToolCalls, ToolUsePart{
					ID:    aws.ToString(b.Value.ToolUseId),
					Name:  aws.ToString(b.Value.Name),
					Input: raw,
				})
			}
		}
		if text != "" {
			response.Content = append(response.Content, Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}})
		}
	}
	if out.Usage != nil {
		response.Usage = TokenUsage{
			Prompt:     int(aws.ToInt32(out.Usage.InputTokens)),
			Candidates: int(aws.ToInt32(out.Usage.OutputTokens)),
			Total:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	response.StopReason = string(out.StopReason)
	return response
}

func isBedrockThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}
