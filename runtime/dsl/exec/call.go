package exec

import (
	"context"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// maxCallAttempts is the "Maximum three attempts total" budget spec.md
// §4.5 assigns a schema-validated Call before raising SchemaValidationError.
const maxCallAttempts = 3

// execCall implements spec.md §4.5's Call statement: render the named
// prompt, optionally enrich it with a schema instruction, send it (plus
// any accumulated retry feedback) to the resolved model, and — for
// schema-validated calls — parse/validate the response with up to
// maxCallAttempts total tries before raising SchemaValidationError.
func (i *Interpreter) execCall(ctx context.Context, wc *WorkflowContext, call ir.Call) error {
	prompt, ok := i.Program.Prompts[call.Prompt]
	if !ok {
		return fmt.Errorf("dsl: call references unknown prompt %q", call.Prompt)
	}

	var input any
	if call.Input != nil {
		v, err := Eval(wc, call.Input)
		if err != nil {
			return err
		}
		input = v
	}

	promptText, err := renderPrompt(wc, prompt, input)
	if err != nil {
		return err
	}

	var schema *ir.SchemaDef
	if prompt.Schema != "" {
		s, ok := i.Program.Schemas[prompt.Schema]
		if !ok {
			return fmt.Errorf("dsl: prompt %q references unknown schema %q", call.Prompt, prompt.Schema)
		}
		enriched, err := enrichWithSchema(promptText, s)
		if err != nil {
			return err
		}
		promptText = enriched
		schema = &s
	}

	explicitModel := ""
	if call.Model != nil {
		v, err := Eval(wc, call.Model)
		if err != nil {
			return err
		}
		if s, ok := v.(string); ok {
			explicitModel = s
		}
	}
	modelID := resolveModel(i.Program, explicitModel, prompt.Model)

	messages := []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: promptText}}}}

	i.emit(model.Event{FlowNotice: &model.FlowNotice{
		PromptName: call.Prompt,
		Model:      modelID,
		PromptText: promptText,
	}})

	result, resultText, err := i.runSchemaCall(ctx, modelID, messages, schema, call.Prompt)
	if err != nil {
		return err
	}

	i.emit(model.Event{FlowNotice: &model.FlowNotice{
		PromptName: call.Prompt,
		Model:      modelID,
		Content:    resultText,
		IsResponse: true,
		IsFinal:    true,
	}})

	wc.setLastResult(result)
	if call.Target != "" {
		wc.SetVar(call.Target, result)
	}
	return nil
}

// runSchemaCall drives the attempt loop. With no schema, it returns the
// raw response text after one attempt (spec.md §4.5: "If no schema:
// last_result = content_string" — no retry applies). The second return
// value is always the raw response text of the attempt that produced the
// first return value, for the caller's post-call UI notice — distinct from
// the first return value once a schema parses it into structured data.
func (i *Interpreter) runSchemaCall(ctx context.Context, modelID string, messages []llm.Message, schema *ir.SchemaDef, promptName string) (any, string, error) {
	if schema == nil {
		resp, err := i.Client.Complete(ctx, llm.Request{Model: modelID, Messages: messages})
		if err != nil {
			return nil, "", err
		}
		text := responseText(resp)
		return text, text, nil
	}

	compiled, err := i.schemas.get(*schema)
	if err != nil {
		return nil, "", err
	}

	var lastErrs []string
	var rawResponse string

	for attempt := 1; attempt <= maxCallAttempts; attempt++ {
		resp, err := i.Client.Complete(ctx, llm.Request{Model: modelID, Messages: messages})
		if err != nil {
			return nil, "", err
		}
		rawResponse = responseText(resp)

		parsed, parseErr := extractJSON(rawResponse)
		if parseErr != nil {
			lastErrs = []string{parseErr.Error()}
			messages = appendFeedback(messages, rawResponse, parseErr.Error())
			continue
		}

		if err := compiled.Validate(parsed); err != nil {
			lastErrs = []string{err.Error()}
			messages = appendFeedback(messages, rawResponse, err.Error())
			continue
		}

		return parsed, rawResponse, nil
	}

	return nil, "", &apperrors.SchemaValidationError{
		SchemaName:  schema.Name,
		Errors:      lastErrs,
		RawResponse: rawResponse,
	}
}

// appendFeedback appends the assistant's (failing) response and a user-role
// feedback message describing the error, per spec.md §4.5: "append
// assistant response and a user-role feedback message containing the
// error to the message list and retry".
func appendFeedback(messages []llm.Message, assistantText, errMsg string) []llm.Message {
	return append(messages,
		llm.Message{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: assistantText}}},
		llm.Message{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{
			Text: fmt.Sprintf("Your previous response was invalid: %s. Please respond again, following the instructions exactly.", errMsg),
		}}},
	)
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
