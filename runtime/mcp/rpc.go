package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rpcRequest/rpcResponse/rpcError mirror JSON-RPC 2.0 framing, grounded on
// features/mcp/runtime/rpc.go.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// toolsCallResult is the raw shape of a tools/call result, before it is
// normalized into a CallResponse.
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type     string  `json:"type"`
	Text     *string `json:"text"`
	MimeType *string `json:"mimeType"`
}

func (c contentItem) text() string {
	if c.Text == nil {
		return ""
	}
	return *c.Text
}

// normalizeToolCallResult concatenates every text content item (a tool may
// return multiple parts) and, when any part is valid JSON tagged
// application/json, also exposes it as Structured. isError on the wire is
// carried through unchanged: per spec.md §4.3 it marks a successful RPC
// whose execution failed, not a transport failure.
func normalizeToolCallResult(result toolsCallResult) CallResponse {
	texts := make([]string, 0, len(result.Content))
	var structured json.RawMessage
	for _, item := range result.Content {
		t := item.text()
		if t == "" {
			continue
		}
		texts = append(texts, t)
		if structured == nil && item.MimeType != nil && *item.MimeType == "application/json" && json.Valid([]byte(t)) {
			structured = json.RawMessage(t)
		}
	}

	joined := strings.Join(texts, "\n")
	payload, err := json.Marshal(joined)
	if err != nil {
		payload = json.RawMessage(`""`)
	}
	if structured == nil && json.Valid([]byte(joined)) {
		structured = json.RawMessage(joined)
	}

	return CallResponse{Result: payload, Structured: structured, IsError: result.IsError}
}
