// Package redislock provides an optional distributed lock enforcing the
// single-writer-per-session-identity discipline (spec.md §5) when multiple
// Supervisor processes share one session root. Local/single-process
// deployments don't need this — the Session Manager already serializes
// access to one identity in-process — but a Redis-backed lock lets several
// processes cooperate without corrupting the same session file.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock token no longer matches
// (the lease expired and someone else acquired it).
var ErrNotHeld = errors.New("streetrace: redis lock not held")

// Locker acquires per-session-identity locks backed by Redis SET NX PX.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Locker. ttl bounds how long a lock may be held before it
// is considered abandoned (e.g. the holding process crashed mid-write).
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock is a held distributed lock for one session identity.
type Lock struct {
	key   string
	token string
}

func lockKey(app, user, id string) string {
	return fmt.Sprintf("streetrace:session-lock:%s:%s:%s", app, user, id)
}

// Acquire blocks (polling) until the lock for (app, user, id) is obtained or
// ctx is canceled.
func (l *Locker) Acquire(ctx context.Context, app, user, id string) (*Lock, error) {
	key := lockKey(app, user, id)
	token := uuid.NewString()

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redislock: acquire %s: %w", key, err)
		}
		if ok {
			return &Lock{key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// unlockScript deletes the key only if it still holds our token, so a lock
// whose TTL already expired and was re-acquired by someone else is not
// accidentally released out from under them.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Release frees the lock. Returns ErrNotHeld if the lease had already
// expired and been taken by another holder.
func (l *Locker) Release(ctx context.Context, lock *Lock) error {
	res, err := unlockScript.Run(ctx, l.client, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return fmt.Errorf("redislock: release %s: %w", lock.key, err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
