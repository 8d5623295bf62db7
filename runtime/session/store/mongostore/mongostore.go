// Package mongostore is an alternative durable Session Store backend for
// deployments that want queryable session metadata instead of a directory
// scan (spec.md §4.1's List operation becomes a Mongo query). It satisfies
// the same store.Store contract as jsonstore.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/session/store"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// doc is the Mongo document shape for one session.
type doc struct {
	ID             string         `bson:"_id"`
	AppName        string         `bson:"app_name"`
	UserID         string         `bson:"user_id"`
	State          map[string]any `bson:"state"`
	Events         []byte         `bson:"events_json"`
	LastUpdateTime time.Time      `bson:"last_update_time"`
}

// Store is a Mongo-backed Session Store.
type Store struct {
	coll   *mongo.Collection
	logger telemetry.Logger
}

// New constructs a Store over the given collection. Callers are expected to
// have already established the collection's unique index on
// (app_name, user_id, _id) out of band.
func New(coll *mongo.Collection, logger telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{coll: coll, logger: logger}
}

func filterFor(app, user, id string) bson.M {
	return bson.M{"_id": id, "app_name": app, "user_id": user}
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, app, user, id string) (model.Session, bool, error) {
	var d doc
	err := s.coll.FindOne(ctx, filterFor(app, user, id)).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Session{}, false, nil
		}
		s.logger.Warn(ctx, "session read failed, treating as absent",
			"app", app, "user", user, "id", id, "error", err.Error())
		return model.Session{}, false, nil
	}
	sess, err := toSession(d)
	if err != nil {
		s.logger.Warn(ctx, "session decode failed, treating as absent",
			"app", app, "user", user, "id", id, "error", err.Error())
		return model.Session{}, false, nil
	}
	return sess, true, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, app, user, id string, state map[string]any, createdAt time.Time) (model.Session, error) {
	if state == nil {
		state = map[string]any{}
	}
	sess := model.Session{ID: id, AppName: app, UserID: user, State: state, LastUpdateTime: createdAt}
	d, err := toDoc(sess)
	if err != nil {
		return model.Session{}, err
	}
	_, err = s.coll.InsertOne(ctx, d)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Session{}, store.ErrAlreadyExists
		}
		return model.Session{}, fmt.Errorf("mongostore: insert: %w", err)
	}
	return sess, nil
}

// AppendEvent implements store.Store.
func (s *Store) AppendEvent(ctx context.Context, sess model.Session, e model.Event) (model.Session, error) {
	sess = sess.Clone()
	sess.Events = append(sess.Events, e)
	sess.LastUpdateTime = time.Now().UTC()
	return s.replace(ctx, sess)
}

// ReplaceEvents implements store.Store.
func (s *Store) ReplaceEvents(ctx context.Context, sess model.Session, newEvents []model.Event) (model.Session, error) {
	replaced := model.Session{
		ID: sess.ID, AppName: sess.AppName, UserID: sess.UserID, State: sess.State,
		Events: append([]model.Event(nil), newEvents...), LastUpdateTime: time.Now().UTC(),
	}
	return s.replace(ctx, replaced)
}

func (s *Store) replace(ctx context.Context, sess model.Session) (model.Session, error) {
	d, err := toDoc(sess)
	if err != nil {
		return model.Session{}, err
	}
	_, err = s.coll.ReplaceOne(ctx, filterFor(sess.AppName, sess.UserID, sess.ID), d,
		options.Replace().SetUpsert(true))
	if err != nil {
		return model.Session{}, fmt.Errorf("mongostore: replace: %w", err)
	}
	return sess, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, app, user string) ([]store.Metadata, error) {
	cur, err := s.coll.Find(ctx, bson.M{"app_name": app, "user_id": user},
		options.Find().SetProjection(bson.M{"events_json": 0}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	defer cur.Close(ctx)

	var out []store.Metadata
	for cur.Next(ctx) {
		var d doc
		if err := cur.Decode(&d); err != nil {
			s.logger.Warn(ctx, "skipping invalid session document during list", "error", err.Error())
			continue
		}
		out = append(out, store.Metadata{ID: d.ID, AppName: d.AppName, UserID: d.UserID, LastUpdateTime: d.LastUpdateTime})
	}
	return out, cur.Err()
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, app, user, id string) error {
	_, err := s.coll.DeleteOne(ctx, filterFor(app, user, id))
	if err != nil {
		return fmt.Errorf("mongostore: delete: %w", err)
	}
	return nil
}

func toDoc(sess model.Session) (doc, error) {
	eventsJSON, err := marshalEvents(sess.Events)
	if err != nil {
		return doc{}, err
	}
	return doc{
		ID: sess.ID, AppName: sess.AppName, UserID: sess.UserID,
		State: sess.State, Events: eventsJSON, LastUpdateTime: sess.LastUpdateTime,
	}, nil
}

func toSession(d doc) (model.Session, error) {
	events, err := unmarshalEvents(d.Events)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		ID: d.ID, AppName: d.AppName, UserID: d.UserID,
		State: d.State, Events: events, LastUpdateTime: d.LastUpdateTime,
	}, nil
}

var _ store.Store = (*Store)(nil)
