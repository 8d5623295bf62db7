package mongostore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/session/store"
)

func testNow() time.Time { return time.Now().UTC() }

var (
	testMongoClient    *mongo.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
)

// setupMongoDB starts a throwaway mongo:7 container, mirroring the teacher's
// own registry/store/mongo test harness: a missing Docker daemon skips every
// test in this file rather than failing the package.
func setupMongoDB() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, mongostore tests will be skipped: %v\n", containerErr)
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		skipMongoTests = true
		return
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		skipMongoTests = true
		return
	}
	if err := testMongoClient.Ping(ctx, nil); err != nil {
		skipMongoTests = true
		return
	}
}

func getMongoStore(t *testing.T) *Store {
	t.Helper()
	if testMongoClient == nil && !skipMongoTests {
		setupMongoDB()
	}
	if skipMongoTests {
		t.Skip("Docker not available, skipping mongostore test")
	}
	collection := testMongoClient.Database("streetrace_test").Collection(t.Name())
	require.NoError(t, collection.Drop(context.Background()))
	return New(collection, nil)
}

func TestMongoStoreCreateGetRoundTrip(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "app", "user", "sess-1", map[string]any{"k": "v"}, testNow())
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, "app", "user", "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "v", got.State["k"])
}

func TestMongoStoreCreateDuplicateReturnsAlreadyExists(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "app", "user", "dup", nil, testNow())
	require.NoError(t, err)

	_, err = s.Create(ctx, "app", "user", "dup", nil, testNow())
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestMongoStoreAppendEventPersists(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "app", "user", "events", nil, testNow())
	require.NoError(t, err)

	e := model.Event{Author: "user", Content: []model.Part{model.TextPart{Text: "hi"}}}
	updated, err := s.AppendEvent(ctx, sess, e)
	require.NoError(t, err)
	require.Len(t, updated.Events, 1)

	got, ok, err := s.Get(ctx, "app", "user", "events")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "hi", got.Events[0].Text())
}

func TestMongoStoreReplaceEventsOverwritesHistory(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "app", "user", "replace", nil, testNow())
	require.NoError(t, err)
	sess, err = s.AppendEvent(ctx, sess, model.Event{Author: "user"})
	require.NoError(t, err)

	newEvents := []model.Event{{Author: "assistant", IsFinal: true}}
	replaced, err := s.ReplaceEvents(ctx, sess, newEvents)
	require.NoError(t, err)
	require.Len(t, replaced.Events, 1)
	assert.Equal(t, "assistant", replaced.Events[0].Author)
}

func TestMongoStoreListFiltersByAppAndUser(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "app", "alice", "a1", nil, testNow())
	require.NoError(t, err)
	_, err = s.Create(ctx, "app", "bob", "b1", nil, testNow())
	require.NoError(t, err)

	metas, err := s.List(ctx, "app", "alice")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "a1", metas[0].ID)
}

func TestMongoStoreDeleteRemovesSession(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "app", "user", "gone", nil, testNow())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "app", "user", "gone"))

	_, ok, err := s.Get(ctx, "app", "user", "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}
