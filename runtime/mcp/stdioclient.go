package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// StdioOptions configures a subprocess-backed MCP client.
type StdioOptions struct {
	Command string
	Args    []string
	Env     []string
	Dir     string

	ProtocolVersion string
	ClientName      string
	ClientVersion   string
}

// StdioClient is a Caller backed by a subprocess speaking MCP's framed
// stdio JSON-RPC transport. Grounded on features/mcp/runtime/stdiocaller.go.
type StdioClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	nextID uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan rpcResponse

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewStdioClient spawns the subprocess, wires stdio, starts the read loop,
// and performs the MCP initialize handshake.
func NewStdioClient(ctx context.Context, opts StdioOptions) (*StdioClient, error) {
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start %q: %w", opts.Command, err)
	}

	c := &StdioClient{
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[uint64]chan rpcResponse),
		closed:  make(chan struct{}),
	}

	go io.Copy(io.Discard, stderr)
	go c.readLoop(stdout)

	if err := c.initialize(ctx, opts); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *StdioClient) next() uint64 { return atomic.AddUint64(&c.nextID, 1) }

func (c *StdioClient) initialize(ctx context.Context, opts StdioOptions) error {
	version := opts.ProtocolVersion
	if version == "" {
		version = "2024-11-05"
	}
	name := opts.ClientName
	if name == "" {
		name = "streetrace"
	}
	clientVersion := opts.ClientVersion
	if clientVersion == "" {
		clientVersion = "0.1.0"
	}
	params := map[string]any{
		"protocolVersion": version,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": name, "version": clientVersion},
	}
	var result json.RawMessage
	return c.call(ctx, "initialize", params, &result)
}

// CallTool implements Caller.
func (c *StdioClient) CallTool(ctx context.Context, req CallRequest) (CallResponse, error) {
	params := map[string]any{"name": req.Tool, "arguments": rawOrEmptyObject(req.Arguments)}
	var raw toolsCallResult
	if err := c.call(ctx, "tools/call", params, &raw); err != nil {
		return CallResponse{}, err
	}
	return normalizeToolCallResult(raw), nil
}

// ListTools implements Caller.
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := c.call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	out := make([]ToolDescriptor, len(result.Tools))
	for i, t := range result.Tools {
		out[i] = ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return out, nil
}

// ListResources implements Caller.
func (c *StdioClient) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	var result struct {
		Resources []struct {
			URI      string `json:"uri"`
			Name     string `json:"name"`
			MimeType string `json:"mimeType"`
		} `json:"resources"`
	}
	if err := c.call(ctx, "resources/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	out := make([]ResourceDescriptor, len(result.Resources))
	for i, r := range result.Resources {
		out[i] = ResourceDescriptor{URI: r.URI, Name: r.Name, MimeType: r.MimeType}
	}
	return out, nil
}

// ReadResource implements Caller.
func (c *StdioClient) ReadResource(ctx context.Context, uri string) (ResourceContent, error) {
	var result struct {
		Contents []struct {
			URI      string `json:"uri"`
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Blob     string `json:"blob"`
		} `json:"contents"`
	}
	if err := c.call(ctx, "resources/read", map[string]any{"uri": uri}, &result); err != nil {
		return ResourceContent{}, err
	}
	if len(result.Contents) == 0 {
		return ResourceContent{URI: uri}, nil
	}
	first := result.Contents[0]
	return ResourceContent{URI: first.URI, MimeType: first.MimeType, Text: first.Text}, nil
}

// ListPrompts implements Caller.
func (c *StdioClient) ListPrompts(ctx context.Context) ([]PromptDescriptor, error) {
	var result struct {
		Prompts []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"prompts"`
	}
	if err := c.call(ctx, "prompts/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	out := make([]PromptDescriptor, len(result.Prompts))
	for i, p := range result.Prompts {
		out[i] = PromptDescriptor{Name: p.Name, Description: p.Description}
	}
	return out, nil
}

// Close tears down the subprocess. Safe to call more than once.
func (c *StdioClient) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		c.closeErr = c.cmd.Wait()
		close(c.closed)
		c.failPending(fmt.Errorf("mcp: client closed"))
	})
	return c.closeErr
}

func (c *StdioClient) call(ctx context.Context, method string, params any, result any) error {
	id := c.next()
	ch := make(chan rpcResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer c.removePending(id)

	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params}
	if err := c.writeMessage(req); err != nil {
		return fmt.Errorf("mcp: write %s: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.Error != nil {
			return &Error{Code: res.Error.Code, Message: res.Error.Message}
		}
		if result != nil && len(res.Result) > 0 {
			if err := json.Unmarshal(res.Result, result); err != nil {
				return fmt.Errorf("mcp: decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("mcp: client closed before %s completed", method)
	}
}

func (c *StdioClient) writeMessage(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.stdin, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = c.stdin.Write(body)
	return err
}

func (c *StdioClient) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			c.failPending(fmt.Errorf("mcp: read loop terminated: %w", err))
			return
		}
		var res rpcResponse
		if err := json.Unmarshal(frame, &res); err != nil {
			continue
		}
		c.dispatch(res)
	}
}

func (c *StdioClient) dispatch(res rpcResponse) {
	c.pendingMu.Lock()
	ch, ok := c.pending[res.ID]
	delete(c.pending, res.ID)
	c.pendingMu.Unlock()
	if ok {
		ch <- res
	}
}

func (c *StdioClient) removePending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *StdioClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- rpcResponse{ID: id, Error: &rpcError{Code: JSONRPCInternalError, Message: err.Error()}}
		delete(c.pending, id)
	}
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("mcp: invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("mcp: missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func rawOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
