package runlock

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the client command subset with an in-memory key so the
// token bookkeeping can be exercised without a redis server.
type fakeRedis struct {
	mu    sync.Mutex
	value string
}

func (f *fakeRedis) SetNX(_ context.Context, _ string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.value != "" {
		return redis.NewBoolResult(false, nil)
	}

	token, ok := value.(string)
	if !ok {
		return redis.NewBoolResult(false, nil)
	}

	f.value = token

	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, _ []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if token, ok := args[0].(string); ok && token == f.value {
		f.value = ""

		return redis.NewCmdResult(int64(1), nil)
	}

	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Close() error {
	return nil
}

func (f *fakeRedis) held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value != ""
}

func newTestLock(fake *fakeRedis) *Lock {
	return &Lock{
		client: fake,
		ttl:    time.Minute,
		logger: slog.New(slog.DiscardHandler),
	}
}

func TestLock_AcquireRelease(t *testing.T) {
	fake := &fakeRedis{}
	lock := newTestLock(fake)

	acquired, err := lock.Acquire(t.Context())
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = lock.Acquire(t.Context())
	require.NoError(t, err)
	assert.False(t, acquired, "lock should not be re-acquirable while held")

	require.NoError(t, lock.Release(t.Context()))
	assert.False(t, fake.held())

	acquired, err = lock.Acquire(t.Context())
	require.NoError(t, err)
	assert.True(t, acquired, "lock should be acquirable again after release")
}

func TestLock_ReleaseWithoutAcquire(t *testing.T) {
	lock := newTestLock(&fakeRedis{})

	require.NoError(t, lock.Release(t.Context()))
}

// TestLock_ConcurrentHandoff drives a Release racing an Acquire on the same
// shared Lock, as two overlapping trigger requests do. The second holder's
// token must survive the first holder's release, so its own release actually
// frees the redis key instead of leaking it until the TTL expires.
func TestLock_ConcurrentHandoff(t *testing.T) {
	fake := &fakeRedis{}
	lock := newTestLock(fake)

	ctx := t.Context()

	for range 100 {
		acquired, err := lock.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, acquired)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			assert.NoError(t, lock.Release(ctx))
		}()

		go func() {
			defer wg.Done()

			for {
				acquired, err := lock.Acquire(ctx)
				if !assert.NoError(t, err) {
					return
				}

				if acquired {
					return
				}
			}
		}()

		wg.Wait()

		require.NoError(t, lock.Release(ctx))
		require.False(t, fake.held(), "release by the second holder must free the lock")
	}

	acquired, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}
