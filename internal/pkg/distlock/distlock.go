// Package distlock provides mutual exclusion for operations that must not
// interleave across requests, such as two concurrent compilations of the
// same newsletter writing the rendered-document cache.
//
// Three backends, best available wins: Redis (cross-host), PostgreSQL
// advisory locks (when the content store is reached over SQL), and a
// process-local registry as the last resort.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a single-use, non-blocking mutual exclusion handle. A Lock value
// belongs to one goroutine; create a new one per attempt.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking. Returns true
	// on success.
	TryAcquire(ctx context.Context) (bool, error)
	// Release releases the lock if this handle still owns it.
	Release(ctx context.Context) error
}

// Factory creates locks for keys against the best configured backend.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	local *localRegistry
	ttl   time.Duration
}

// NewFactory builds a lock factory. Either client may be nil; with both nil
// all locks are process-local.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	return &Factory{
		redis: redisClient,
		db:    db,
		local: newLocalRegistry(),
		ttl:   ttl,
	}
}

// ForKey returns a lock for the given key.
func (f *Factory) ForKey(key string) Lock {
	if f.redis != nil {
		return newRedisLock(f.redis, key, f.ttl)
	}
	if f.db != nil {
		return newAdvisoryLock(f.db, key)
	}
	return f.local.forKey(key)
}

// redisLock uses SET NX with a TTL and a random ownership value. Release is
// a Lua compare-and-delete so a lock held past its TTL by a stalled process
// cannot release a successor's lock.
type redisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, key string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		client: client,
		key:    "lock:" + key,
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// advisoryLock uses pg_try_advisory_lock with a lock ID derived from the
// key. Session-scoped, so a dropped connection releases it automatically.
type advisoryLock struct {
	db     *sql.DB
	lockID int64
}

func newAdvisoryLock(db *sql.DB, key string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *advisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&ok)
	return ok, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
