package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// Manager owns the lifecycle of a fleet of MCP servers, aggregates their
// tool/resource/prompt catalogs, and routes calls to the right server by
// name. Grounded on original_source/src/streetrace/mcp/manager.py's
// MCPClientManager (parallel start/stop, active-client map, list_all_tools
// aggregation, call_tool_on_client routing).
type Manager struct {
	logger  telemetry.Logger
	configs []ServerConfig

	mu      sync.RWMutex
	active  map[string]Caller
	factory func(ctx context.Context, cfg ServerConfig) (Caller, error)
}

// NewManager constructs a Manager over an already-loaded (and validated)
// server list. Use LoadConfig to produce configs from a YAML file.
func NewManager(configs []ServerConfig, logger telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Manager{
		logger:  logger,
		configs: configs,
		active:  make(map[string]Caller),
		factory: defaultFactory,
	}
}

// SetFactoryForTest overrides the client factory. Exposed for tests that
// substitute an in-process fake Caller instead of spawning a subprocess.
func (m *Manager) SetFactoryForTest(factory func(ctx context.Context, cfg ServerConfig) (Caller, error)) {
	m.factory = factory
}

func defaultFactory(ctx context.Context, cfg ServerConfig) (Caller, error) {
	return NewStdioClient(ctx, StdioOptions{
		Command: cfg.Command,
		Args:    cfg.Args,
		Env:     cfg.EnvSlice(),
	})
}

// EnabledServers returns the subset of configured servers with Enabled set.
func (m *Manager) EnabledServers() []ServerConfig {
	var out []ServerConfig
	for _, c := range m.configs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// clientResult pairs a spawned client with its config for the fan-in phase.
type clientResult struct {
	name   string
	caller Caller
	err    error
}

// Open starts every enabled server concurrently. A server that fails to
// start is logged and excluded from the active set — one bad server must
// not prevent the rest of the fleet from becoming available.
func (m *Manager) Open(ctx context.Context) error {
	enabled := m.EnabledServers()
	if len(enabled) == 0 {
		m.logger.Info(ctx, "mcp: no enabled servers to start")
		return nil
	}

	results := make(chan clientResult, len(enabled))
	var wg sync.WaitGroup
	for _, cfg := range enabled {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			caller, err := m.factory(ctx, cfg)
			results <- clientResult{name: cfg.Name, caller: caller, err: err}
		}(cfg)
	}
	wg.Wait()
	close(results)

	m.mu.Lock()
	defer m.mu.Unlock()

	started := 0
	for res := range results {
		if res.err != nil {
			m.logger.Error(ctx, "mcp: failed to start server", "name", res.name, "error", res.err.Error())
			continue
		}
		m.active[res.name] = res.caller
		started++
	}
	m.logger.Info(ctx, "mcp: finished starting servers", "active", started, "attempted", len(enabled))
	return nil
}

// Close tears down every active client concurrently, collecting failures
// into an apperrors.Aggregate rather than stopping at the first error.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	clients := m.active
	m.active = make(map[string]Caller)
	m.mu.Unlock()

	if len(clients) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(clients))
	names := make([]string, 0, len(clients))
	callers := make([]Caller, 0, len(clients))
	for name, c := range clients {
		names = append(names, name)
		callers = append(callers, c)
	}

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := callers[i].Close(); err != nil {
				errs[i] = fmt.Errorf("mcp: close %s: %w", names[i], err)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			m.logger.Error(ctx, "mcp: error during client shutdown", "name", names[i], "error", err.Error())
		}
	}
	return apperrors.NewAggregate(errs)
}

// ActiveServerNames lists the currently running clients.
func (m *Manager) ActiveServerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.active))
	for name := range m.active {
		out = append(out, name)
	}
	return out
}

func (m *Manager) client(serverName string) (Caller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.active[serverName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrMcpClientNotFound, serverName)
	}
	return c, nil
}

// ListAllTools aggregates the tool catalog of every active client. A
// client that fails to list its tools is logged and skipped; the
// aggregate call never fails outright because of one misbehaving server.
func (m *Manager) ListAllTools(ctx context.Context) []ToolDescriptor {
	m.mu.RLock()
	snapshot := make(map[string]Caller, len(m.active))
	for k, v := range m.active {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}

	var all []ToolDescriptor
	for name, c := range snapshot {
		tools, err := c.ListTools(ctx)
		if err != nil {
			m.logger.Error(ctx, "mcp: error listing tools", "server", name, "error", err.Error())
			continue
		}
		for i := range tools {
			tools[i].ServerName = name
		}
		all = append(all, tools...)
	}
	return all
}

// CallToolOn relays a tool invocation to the named server. Returns
// apperrors.ErrMcpClientNotFound if the server isn't active.
func (m *Manager) CallToolOn(ctx context.Context, serverName string, req CallRequest) (CallResponse, error) {
	c, err := m.client(serverName)
	if err != nil {
		return CallResponse{}, err
	}
	m.logger.Info(ctx, "mcp: relaying tool call", "server", serverName, "tool", req.Tool)
	res, err := c.CallTool(ctx, req)
	if err != nil {
		return CallResponse{}, &apperrors.McpClientInteractionError{Server: serverName, Tool: req.Tool, Err: err}
	}
	return res, nil
}

// ListResources aggregates resource catalogs from every active client.
func (m *Manager) ListResources(ctx context.Context) []ResourceDescriptor {
	m.mu.RLock()
	snapshot := make(map[string]Caller, len(m.active))
	for k, v := range m.active {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	var all []ResourceDescriptor
	for name, c := range snapshot {
		resources, err := c.ListResources(ctx)
		if err != nil {
			m.logger.Error(ctx, "mcp: error listing resources", "server", name, "error", err.Error())
			continue
		}
		for i := range resources {
			resources[i].ServerName = name
		}
		all = append(all, resources...)
	}
	return all
}

// ReadResource reads a resource from the named server.
func (m *Manager) ReadResource(ctx context.Context, serverName, uri string) (ResourceContent, error) {
	c, err := m.client(serverName)
	if err != nil {
		return ResourceContent{}, err
	}
	content, err := c.ReadResource(ctx, uri)
	if err != nil {
		return ResourceContent{}, &apperrors.McpClientInteractionError{Server: serverName, Tool: "resources/read", Err: err}
	}
	content.ServerName = serverName
	return content, nil
}

// ListPrompts aggregates prompt catalogs from every active client.
func (m *Manager) ListPrompts(ctx context.Context) []PromptDescriptor {
	m.mu.RLock()
	snapshot := make(map[string]Caller, len(m.active))
	for k, v := range m.active {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	var all []PromptDescriptor
	for name, c := range snapshot {
		prompts, err := c.ListPrompts(ctx)
		if err != nil {
			m.logger.Error(ctx, "mcp: error listing prompts", "server", name, "error", err.Error())
			continue
		}
		for i := range prompts {
			prompts[i].ServerName = name
		}
		all = append(all, prompts...)
	}
	return all
}
