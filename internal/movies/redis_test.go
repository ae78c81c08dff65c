package movies

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hatemosphere/movies-backend/internal/gziputil"
)

type mockCmdable struct {
	mock.Mock
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func TestRedisCache_SetCompresses(t *testing.T) {
	m := new(mockCmdable)
	doc := []byte(`{"id":550}`)
	m.On("Set", mock.Anything, "movies:movie/550", mock.MatchedBy(func(v any) bool {
		b, ok := v.([]byte)
		if !ok || !gziputil.IsGzipped(b) {
			return false
		}
		out, err := gziputil.Decompress(b)
		return err == nil && string(out) == string(doc)
	}), 5*time.Minute).Return(redis.NewStatusResult("OK", nil)).Once()

	newRedisCache(m, "", 5*time.Minute).Set(context.Background(), "movie/550", doc)
	m.AssertExpectations(t)
}

func TestRedisCache_GetHit(t *testing.T) {
	z, err := gziputil.Compress([]byte(`{"id":550}`))
	require.NoError(t, err)

	m := new(mockCmdable)
	m.On("Get", mock.Anything, "p:movie/550").Return(redis.NewStringResult(string(z), nil))

	v, ok := newRedisCache(m, "p:", time.Minute).Get(context.Background(), "movie/550")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":550}`, string(v))
}

func TestRedisCache_FailuresAreMisses(t *testing.T) {
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "movies:nil").Return(redis.NewStringResult("", redis.Nil))
	m.On("Get", mock.Anything, "movies:down").Return(redis.NewStringResult("", errors.New("connection refused")))
	m.On("Get", mock.Anything, "movies:corrupt").Return(redis.NewStringResult("plain", nil))
	m.On("Set", mock.Anything, "movies:k", mock.Anything, mock.Anything).
		Return(redis.NewStatusResult("", errors.New("READONLY")))
	c := newRedisCache(m, "", 0)

	for _, key := range []string{"nil", "down", "corrupt"} {
		_, ok := c.Get(context.Background(), key)
		assert.False(t, ok, key)
	}
	assert.NotPanics(t, func() { c.Set(context.Background(), "k", []byte("{}")) })
}

func TestRedisCache_BehindService(t *testing.T) {
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "movies:movie/popular").Return(redis.NewStringResult("", redis.Nil)).Once()
	m.On("Set", mock.Anything, "movies:movie/popular", mock.Anything, 10*time.Minute).
		Return(redis.NewStatusResult("OK", nil)).Once()

	f := newFake()
	home, err := NewService(f, newRedisCache(m, "", 0)).HomeList(context.Background())
	require.NoError(t, err)
	assert.Len(t, home, 1)
	m.AssertExpectations(t)
}

func TestRedisCache_Ping(t *testing.T) {
	m := new(mockCmdable)
	m.On("Ping", mock.Anything).Return(redis.NewStatusResult("PONG", nil))
	assert.NoError(t, newRedisCache(m, "", 0).Ping(context.Background()))
}
