// Package workload implements the Workload Manager (C9): uniform discovery
// and instantiation of workloads — YAML agent cards, DSL-compiled flows, and
// external-process ("Python") agents — from multiple search locations in
// priority order.
//
// Grounded on original_source/.../agents/resolver.py's SourceResolver: the
// same discover-then-resolve split (walk locations once, build a name->path
// cache; resolve a name against that cache lazily at creation time) and the
// same exclusion rules (hidden directories, a fixed blocklist). What's
// ported here is the *shape* of that resolver, not its HTTP/identifier
// resolution surface — spec.md §4.7 only asks for location discovery plus
// name-based creation, not the original's additional "resolve an arbitrary
// path or URL" API.
package workload

import (
	"context"
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// Format names one of the three workload definition kinds spec.md §4.7
// recognizes.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatDSL     Format = "dsl"
	FormatProcess Format = "process" // the spec's "Python definition": an external-process agent
)

// Definition is what discovery produces for one workload before it is
// built: enough metadata to pick it out of the cache by name and to hand
// back to the Loader that recognized it when the caller actually wants to
// run it.
type Definition struct {
	Name        string
	Description string
	Format      Format
	Path        string // file or directory path this definition was discovered at
	Location    string // which search-location root it was discovered under (for dedup logging)
}

// Workload is a runnable, closeable agent instantiation — the thing
// Supervisor (C10) drives per spec.md §4.8 step 4
// ("workload.run_async(session, new_message)").
type Workload interface {
	// RunAsync streams this workload's response to newMessage, in the
	// context of session (read-only: a Workload does not itself persist
	// session state — that is the Session Manager's job).
	RunAsync(ctx context.Context, session *model.Session, newMessage string) (<-chan model.Event, <-chan error)
	// Close releases any resources the workload holds (model clients have
	// none of their own, but a process-backed workload's subprocess and a
	// DSL workload's nested agent tree do).
	Close() error
}

// Loader recognizes and builds one Format. Discover asks every registered
// Loader, in registration order, whether it claims a given path; the first
// to answer true produces the Definition.
type Loader interface {
	Format() Format
	// Identify reports whether path (a file or a directory) is in this
	// loader's format. Called once per discovered path; must not have side
	// effects beyond inspecting the filesystem.
	Identify(path string) bool
	// Load parses path into a Definition. Called once, at discovery time —
	// not at Build time, so a malformed definition is reported (as a debug
	// note, per spec.md §4.7) without failing the whole discovery pass.
	Load(path string) (Definition, error)
	// Build constructs the runnable Workload for a Definition this Loader
	// produced. Called lazily, only when CreateWorkload actually resolves
	// to this definition.
	Build(ctx context.Context, def Definition) (Workload, error)
}

func normalizeName(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
