// Package jsonstore is the default Session Store backend: one JSON file per
// session under <root>/<app>/<user>/<session-id>.json, fronted by an
// in-memory cache.
//
// The in-memory cache idiom (sync.RWMutex + map + defensive clone on every
// read/write) is grounded on the teacher's session/inmem.Store; the on-disk
// layout and whole-file replace semantics are grounded on the original
// Python session_manager.py/json_serializer (sessions directory rooted at
// <config_dir>/sessions/<app_name>/<user_id>/<session_id>.json).
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/session/store"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// Store is the file-backed, in-memory-cached Session Store.
type Store struct {
	root   string
	logger telemetry.Logger

	mu    sync.RWMutex
	cache map[string]model.Session // keyed by identityKey(app,user,id)
}

// New constructs a Store rooted at root. The directory is created lazily on
// first write.
func New(root string, logger telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{root: root, logger: logger, cache: make(map[string]model.Session)}
}

func identityKey(app, user, id string) string { return app + "\x00" + user + "\x00" + id }

func (s *Store) path(app, user, id string) string {
	return filepath.Join(s.root, app, user, id+".json")
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, app, user, id string) (model.Session, bool, error) {
	key := identityKey(app, user, id)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached.Clone(), true, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(app, user, id))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(ctx, "session read failed, treating as absent",
				"app", app, "user", user, "id", id, "error", err.Error())
		}
		return model.Session{}, false, nil
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn(ctx, "session decode failed, treating as absent",
			"app", app, "user", user, "id", id, "error", err.Error())
		return model.Session{}, false, nil
	}

	s.mu.Lock()
	s.cache[key] = sess.Clone()
	s.mu.Unlock()

	return sess, true, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, app, user, id string, state map[string]any, createdAt time.Time) (model.Session, error) {
	if _, ok, _ := s.Get(ctx, app, user, id); ok {
		return model.Session{}, store.ErrAlreadyExists
	}
	if state == nil {
		state = map[string]any{}
	}
	sess := model.Session{
		ID:             id,
		AppName:        app,
		UserID:         user,
		State:          state,
		Events:         nil,
		LastUpdateTime: createdAt,
	}
	if err := s.persist(sess); err != nil {
		return model.Session{}, err
	}
	s.setCache(sess)
	return sess.Clone(), nil
}

// AppendEvent implements store.Store.
func (s *Store) AppendEvent(ctx context.Context, sess model.Session, e model.Event) (model.Session, error) {
	sess = sess.Clone()
	sess.Events = append(sess.Events, e)
	sess.LastUpdateTime = time.Now().UTC()
	if err := s.persist(sess); err != nil {
		return model.Session{}, err
	}
	s.setCache(sess)
	return sess.Clone(), nil
}

// ReplaceEvents implements store.Store.
func (s *Store) ReplaceEvents(ctx context.Context, sess model.Session, newEvents []model.Event) (model.Session, error) {
	replaced := model.Session{
		ID:             sess.ID,
		AppName:        sess.AppName,
		UserID:         sess.UserID,
		State:          sess.State,
		Events:         make([]model.Event, len(newEvents)),
		LastUpdateTime: time.Now().UTC(),
	}
	copy(replaced.Events, newEvents)
	if err := s.persist(replaced); err != nil {
		return model.Session{}, err
	}
	s.setCache(replaced)
	return replaced.Clone(), nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, app, user string) ([]store.Metadata, error) {
	dir := filepath.Join(s.root, app, user)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonstore: list %s: %w", dir, err)
	}

	var out []store.Metadata
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		sess, ok, _ := s.Get(ctx, app, user, id)
		if !ok {
			s.logger.Warn(ctx, "skipping invalid session file during list", "path", filepath.Join(dir, entry.Name()))
			continue
		}
		out = append(out, store.Metadata{
			ID:             sess.ID,
			AppName:        sess.AppName,
			UserID:         sess.UserID,
			LastUpdateTime: sess.LastUpdateTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdateTime.Before(out[j].LastUpdateTime) })
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, app, user, id string) error {
	p := s.path(app, user, id)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonstore: stat %s: %w", p, err)
	}
	if info.IsDir() {
		s.logger.Warn(ctx, "session path is a directory, not deleting", "path", p)
		return nil
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("jsonstore: remove %s: %w", p, err)
	}

	s.mu.Lock()
	delete(s.cache, identityKey(app, user, id))
	s.mu.Unlock()

	s.removeEmptyDirs(filepath.Dir(p))
	return nil
}

// removeEmptyDirs removes dir and its parent (the user and app directories)
// if they are empty, stopping at the store root.
func (s *Store) removeEmptyDirs(dir string) {
	for i := 0; i < 2; i++ {
		if dir == s.root || dir == "." || dir == string(filepath.Separator) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (s *Store) persist(sess model.Session) error {
	p := s.path(sess.AppName, sess.UserID, sess.ID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("jsonstore: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("jsonstore: write: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("jsonstore: rename: %w", err)
	}
	return nil
}

func (s *Store) setCache(sess model.Session) {
	s.mu.Lock()
	s.cache[identityKey(sess.AppName, sess.UserID, sess.ID)] = sess.Clone()
	s.mu.Unlock()
}

var _ store.Store = (*Store)(nil)
