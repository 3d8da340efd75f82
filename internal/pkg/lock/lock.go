package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock is held by another owner")
	ErrLost        = errors.New("lock is no longer held")
)

// Lease is a held lock. Release is safe to call after the lock expired.
type Lease interface {
	// Refresh pushes the expiry out to ttl from now. It returns ErrLost when
	// the lock expired and was taken by another owner.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// releaseScript deletes the key only while it still holds our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// refreshScript extends the key only while it still holds our token
const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

type RedisLocker struct {
	client   redis.Cmdable
	prefix   string
	newToken func() string
}

func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{
		client:   client,
		prefix:   prefix,
		newToken: func() string { return uuid.NewString() },
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	fullKey := l.prefix + key
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, key: fullKey, token: token}, nil
}

type redisLease struct {
	client redis.Cmdable
	key    string
	token  string
}

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := r.client.Eval(ctx, refreshScript, []string{r.key}, r.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", r.key, err)
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := r.client.Eval(ctx, releaseScript, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", r.key, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	seq  uint64
	now  func() time.Time
}

type localEntry struct {
	token     uint64
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, ErrNotAcquired
	}

	l.seq++
	l.held[key] = localEntry{token: l.seq, expiresAt: now.Add(ttl)}
	return &localLease{locker: l, key: key, token: l.seq}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (r *localLease) Refresh(_ context.Context, ttl time.Duration) error {
	l := r.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[r.key]
	if !ok || entry.token != r.token {
		return ErrLost
	}
	entry.expiresAt = l.now().Add(ttl)
	l.held[r.key] = entry
	return nil
}

func (r *localLease) Release(context.Context) error {
	l := r.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[r.key]; ok && entry.token == r.token {
		delete(l.held, r.key)
	}
	return nil
}
