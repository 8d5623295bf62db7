// Package store defines the Session Store contract (C2): durable and
// in-memory storage of sessions keyed by (app_name, user_id, session_id)
// with atomic whole-session replace semantics.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// ErrAlreadyExists is returned by Create when a session with the given
// identity already exists, in memory or on disk.
var ErrAlreadyExists = errors.New("streetrace: session already exists")

// Metadata is the lightweight record returned by List: enough to render a
// session picker without paying the cost of loading every event log.
type Metadata struct {
	ID             string
	AppName        string
	UserID         string
	LastUpdateTime time.Time
}

// Store persists sessions. Implementations must honor the single-writer-
// per-session-identity discipline described in spec.md §5: the Store
// itself does not arbitrate between concurrent writers for the same
// identity, it is the Session Manager's job to route all mutation for one
// identity through a single owner.
type Store interface {
	// Get returns the session for (app, user, id), loading it from durable
	// storage (jsonstore first consults, and then fills, its in-memory
	// cache; mongostore has no cache). Returns (Session{}, false, nil) — never an error — when the
	// session is absent OR when the read/decode failed; read failures are
	// logged and treated as "absent" per spec.md §4.1's failure model.
	Get(ctx context.Context, app, user, id string) (model.Session, bool, error)

	// Create creates a brand new session with empty events and the given
	// initial state. Returns ErrAlreadyExists if the identity is already
	// present in memory or on disk.
	Create(ctx context.Context, app, user, id string, state map[string]any, createdAt time.Time) (model.Session, error)

	// AppendEvent appends one event to the session's event log, bumps
	// LastUpdateTime, and persists the whole session.
	AppendEvent(ctx context.Context, s model.Session, e model.Event) (model.Session, error)

	// ReplaceEvents atomically rewrites the event list, preserving identity
	// and state, and persists. Per invariant 3, the returned session has
	// (AppName, UserID, ID, State) unchanged from s and Events set exactly
	// to newEvents.
	ReplaceEvents(ctx context.Context, s model.Session, newEvents []model.Event) (model.Session, error)

	// List enumerates session metadata for (app, user) by scanning
	// storage. Invalid entries are skipped (logged, not fatal) and do not
	// abort enumeration.
	List(ctx context.Context, app, user string) ([]Metadata, error)

	// Delete removes the session (jsonstore also removes any now-empty
	// parent directories of the session file).
	Delete(ctx context.Context, app, user, id string) error
}
