package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/testutil/memstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the two commands the store issues.
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func TestStoreReserveFinalizeLookup(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, memstore.New(), time.Hour)

	_, err := s.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	reserved, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/bets")
	require.NoError(t, err)
	assert.True(t, reserved)

	_, err = s.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrInProgress)

	again, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/bets")
	require.NoError(t, err)
	assert.False(t, again)

	rec, err := s.Finalize(ctx, "k1", "h1", 201, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)

	got, err := s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got.ServedBy)
	assert.JSONEq(t, `{"ok":true}`, string(got.Body))

	_, err = s.Lookup(ctx, "k1", "other")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreReleaseFreesUnfinishedKey(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, memstore.New(), time.Hour)

	reserved, err := s.Reserve(ctx, "k1", "h1", "POST", "/v1/bets")
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, s.Release(ctx, "k1", "h1"))
	_, err = s.Lookup(ctx, "k1", "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	reserved, err = s.Reserve(ctx, "k1", "h1", "POST", "/v1/bets")
	require.NoError(t, err)
	assert.True(t, reserved)

	_, err = s.Finalize(ctx, "k1", "h1", 201, []byte(`{}`), "application/json")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k1", "h1"))
	rec, err := s.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
}

func TestStoreReleaseReportsStorageErrors(t *testing.T) {
	db := memstore.New()
	db.FailOn("DeleteInProgressIdempotencyKey", errors.New("connection reset"))
	s := NewStore(nil, db, time.Hour)

	err := s.Release(context.Background(), "k1", "h1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release idempotency key")
}

func TestStoreServesFromRedisAfterFinalize(t *testing.T) {
	ctx := context.Background()
	cache := newFakeRedis()
	s := NewStore(cache, memstore.New(), time.Hour)

	_, err := s.Reserve(ctx, "k2", "h2", "POST", "/v1/markets/x/settle")
	require.NoError(t, err)
	_, err = s.Finalize(ctx, "k2", "h2", 200, []byte(`{}`), "application/json")
	require.NoError(t, err)
	assert.Contains(t, cache.values, "idempotency:k2")

	got, err := s.Lookup(ctx, "k2", "h2")
	require.NoError(t, err)
	assert.Equal(t, "redis", got.ServedBy)

	_, err = s.Lookup(ctx, "k2", "different")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreFallsBackWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	cache := newFakeRedis()
	cache.getErr = errors.New("connection refused")
	s := NewStore(cache, memstore.New(), time.Hour)

	_, err := s.Reserve(ctx, "k3", "h3", "POST", "/v1/bets")
	require.NoError(t, err)
	_, err = s.Finalize(ctx, "k3", "h3", 201, []byte(`{}`), "application/json")
	require.NoError(t, err)

	got, err := s.Lookup(ctx, "k3", "h3")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got.ServedBy)
}

func TestWaitForCompletion(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, memstore.New(), time.Hour)
	s.poll = 5 * time.Millisecond

	_, err := s.Reserve(ctx, "k4", "h4", "POST", "/v1/bets")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Finalize(context.Background(), "k4", "h4", 201, []byte(`{"id":1}`), "application/json")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, err := s.WaitForCompletion(waitCtx, "k4", "h4")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	s := NewStore(nil, memstore.New(), time.Hour)
	s.poll = 5 * time.Millisecond
	_, err := s.Reserve(context.Background(), "k5", "h5", "POST", "/v1/bets")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.WaitForCompletion(ctx, "k5", "h5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
