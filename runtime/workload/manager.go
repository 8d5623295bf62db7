package workload

import (
	"context"
	"fmt"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// defaultAliasName is the fallback target for the "default" name alias
// (spec.md §4.7 "Name aliases") when the caller hasn't configured one of
// their own via WithDefaultAlias. It names the conventional built-in coding
// agent a host application ships as its always-available workload.
const defaultAliasName = "coding_agent"

// Manager discovers workload definitions across a set of search locations
// and constructs them on demand by name.
//
// Grounded on
// original_source/.../agents/resolver.py's SourceResolver.discover/resolve
// split, generalized from that file's hard-coded DSL/YAML/Python walk into
// a pluggable Loader registry so each format lives in its own package
// (yamlworkload, dslworkload, procworkload) without this package importing
// any of them.
type Manager struct {
	mu      sync.Mutex
	loaders []Loader
	defs    map[string]Definition

	logger       telemetry.Logger
	defaultAlias string
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithDefaultAlias overrides which discovered workload name the literal
// string "default" resolves to.
func WithDefaultAlias(name string) Option {
	return func(m *Manager) { m.defaultAlias = name }
}

// WithLogger sets the Manager's logger (defaults to a no-op logger).
func WithLogger(logger telemetry.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New constructs a Manager. loaders are consulted, in order, during
// Discover; the first loader to Identify a path wins it.
func New(loaders []Loader, opts ...Option) *Manager {
	m := &Manager{
		loaders:      loaders,
		defs:         make(map[string]Definition),
		logger:       telemetry.NewNoopLogger(),
		defaultAlias: defaultAliasName,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup returns the discovered Definition for name (case-insensitive,
// "default" aliased per spec.md §4.7), without building it.
func (m *Manager) Lookup(name string) (Definition, bool) {
	resolved := m.resolveAlias(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[normalizeName(resolved)]
	return def, ok
}

func (m *Manager) resolveAlias(name string) string {
	if normalizeName(name) == "default" {
		return m.defaultAlias
	}
	return name
}

// CreateWorkload resolves name, builds the workload via its Loader, and
// invokes fn with it, guaranteeing Close is called afterward regardless of
// whether fn returns an error or panics — the Go rendition of spec.md
// §4.7's "create_workload(name) -> context<Workload> ... on context exit,
// calls close() unconditionally, including on exception."
func (m *Manager) CreateWorkload(ctx context.Context, name string, fn func(context.Context, Workload) error) error {
	def, ok := m.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", apperrors.ErrWorkloadNotFound, name)
	}

	loader := m.loaderFor(def)
	if loader == nil {
		return fmt.Errorf("workload: no loader registered for format %q (definition %q)", def.Format, def.Name)
	}
	workload, err := loader.Build(ctx, def)
	if err != nil {
		return fmt.Errorf("workload: building %q: %w", def.Name, err)
	}
	defer func() {
		if closeErr := workload.Close(); closeErr != nil {
			m.logger.Warn(ctx, "workload: close failed", "name", def.Name, "error", closeErr)
		}
	}()

	return fn(ctx, workload)
}

func (m *Manager) loaderFor(def Definition) Loader {
	for _, l := range m.loaders {
		if l.Format() == def.Format {
			return l
		}
	}
	return nil
}
