// Package lease arbitrates which terminal drains a shared operation queue.
//
// Two terminal processes opened on the same database file (or sharing a
// Redis) would otherwise both replay the queue. The reconciler drains only
// while it holds the lease. Leases expire so a crashed holder cannot block
// the others forever.
package lease

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a named, expiring, single-holder lock.
type Lease interface {
	// Acquire takes or renews the lease. Returns false if another holder
	// has it.
	Acquire(ctx context.Context) (bool, error)

	// Release gives the lease up if this holder has it.
	Release(ctx context.Context) error
}

// None is a lease that is always granted.
type None struct{}

// Acquire implements Lease.
func (None) Acquire(context.Context) (bool, error) { return true, nil }

// Release implements Lease.
func (None) Release(context.Context) error { return nil }

// SQLite stores the lease in the leases table of the local store.
type SQLite struct {
	db     *sql.DB
	name   string
	holder string
	ttl    time.Duration
	now    func() time.Time
}

// NewSQLite creates a lease on db. Each value gets a random holder id.
func NewSQLite(db *sql.DB, name string, ttl time.Duration) *SQLite {
	return &SQLite{
		db:     db,
		name:   name,
		holder: uuid.NewString(),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Holder returns this lease's holder id.
func (l *SQLite) Holder() string {
	return l.holder
}

// Acquire implements Lease.
//
// The upsert takes over the row only when it expired or already belongs to
// this holder, so RowsAffected tells whether the lease was granted.
func (l *SQLite) Acquire(ctx context.Context) (bool, error) {
	now := l.now()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE leases.expires_at <= ? OR leases.holder = excluded.holder
	`, l.name, l.holder, now.Add(l.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: rows affected: %w", l.name, err)
	}
	return n > 0, nil
}

// Release implements Lease.
func (l *SQLite) Release(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM leases WHERE name = ? AND holder = ?`, l.name, l.holder); err != nil {
		return fmt.Errorf("release lease %s: %w", l.name, err)
	}
	return nil
}

// Redis stores the lease under a key with SET NX PX.
type Redis struct {
	client *redis.Client
	key    string
	holder string
	ttl    time.Duration
}

// renewScript extends the TTL only if the caller still holds the key.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only if the caller holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedis creates a lease on an existing client.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, holder: uuid.NewString(), ttl: ttl}
}

// DialRedis parses a redis:// URL and creates a lease on a new client.
func DialRedis(url, key string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("lease: parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), key, ttl), nil
}

// Acquire implements Lease.
func (l *Redis) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, l.holder, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease %s: %w", l.key, err)
	}
	return renewed == 1, nil
}

// Release implements Lease.
func (l *Redis) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.holder).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}

// Close closes the underlying client.
func (l *Redis) Close() error {
	return l.client.Close()
}
