// Package runlock provides a redis-backed lock around the scan pipeline so
// overlapping trigger ticks cannot start two concurrent scans.
package runlock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKey = "cadent:scan:lock"

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// client is the subset of redis commands the lock needs.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Close() error
}

// Lock serializes scan pipeline invocations across processes. One Lock is
// shared by every trigger request in a process, so the token bookkeeping is
// serialized by mu: a Release racing an Acquire from an overlapping request
// must never clobber the token of the acquisition that won.
type Lock struct {
	client client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

// New connects to redis using a redis:// URL. The TTL bounds how long a
// crashed holder can block other ticks.
func New(redisURL string, ttl time.Duration, logger *slog.Logger) (*Lock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis lock URL: %w", err)
	}

	return &Lock{
		client: redis.NewClient(opts),
		ttl:    ttl,
		logger: logger.With("module", "runlock"),
	}, nil
}

// Acquire attempts to take the scan lock. It returns false without error when
// another scan currently holds it, including a scan in this same process.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		return false, nil
	}

	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire scan lock: %w", err)
	}

	if ok {
		l.token = token
	}

	return ok, nil
}

// Release frees the lock if this process still holds it.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}

	deleted, err := l.client.Eval(ctx, releaseScript, []string{lockKey}, l.token).Result()
	if err != nil {
		return fmt.Errorf("failed to release scan lock: %w", err)
	}

	if n, ok := deleted.(int64); ok && n == 0 {
		l.logger.WarnContext(ctx, "Scan lock expired before release; another scan may have run concurrently")
	}

	l.token = ""

	return nil
}

// Close releases the underlying redis client.
func (l *Lock) Close() error {
	return l.client.Close()
}
