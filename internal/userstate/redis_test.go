package userstate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopegate/internal/action"
	"scopegate/internal/oauth"
)

func newTestRedisStore(t *testing.T, pendingTTL time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "test:", pendingTTL)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestConnectRedis_Errors(t *testing.T) {
	_, err := ConnectRedis(context.Background(), RedisConfig{URL: "not-a-url"})
	assert.ErrorIs(t, err, ErrInvalidRedisURL)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = ConnectRedis(context.Background(), RedisConfig{
		URL:           "redis://" + addr,
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrRedisNotReady)
}

func TestRedisStore_Token(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, 0)

	_, ok, err := s.GetToken(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.SetToken(ctx, "u1", &oauth.Token{
		AccessToken: oauth.NewRedactedToken("secret-1"),
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		Scope:       "browse global",
	}))

	got, ok, err := s.GetToken(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "secret-1", got.AccessToken.Value())
	assert.Equal(t, "Bearer", got.TokenType)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.Equal(t, "browse global", got.Scope)

	ttl := mr.TTL("test:user:u1:token")
	assert.Greater(t, ttl, 24*time.Hour)
	assert.LessOrEqual(t, ttl, 25*time.Hour)

	require.NoError(t, s.SetToken(ctx, "u2", &oauth.Token{AccessToken: oauth.NewRedactedToken("no-expiry")}))
	assert.Equal(t, time.Duration(0), mr.TTL("test:user:u2:token"))
}

func TestRedisStore_CorruptToken(t *testing.T) {
	s, mr := newTestRedisStore(t, 0)
	require.NoError(t, mr.Set("test:user:u1:token", "{not json"))

	_, _, err := s.GetToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestRedisStore_PendingEntriesAreSingleUse(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, 15*time.Minute)

	c := &action.Context{
		ActionURI: "https://api/v1pre3/actions/7",
		User:      action.User{ID: "u1", Name: "Ada"},
		Projects:  []action.Project{{ID: "p1", Name: "Run 12"}},
		Scope:     "browse global, read project p1",
	}
	ctxKey, err := s.PutContext(ctx, "u1", c)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:user:u1:ctx:"+ctxKey))
	assert.Equal(t, 15*time.Minute, mr.TTL("test:user:u1:ctx:"+ctxKey))

	cont := action.NewSetAnalysisStatus(ctxKey, action.SetAnalysisStatus{
		ProjectID: "p1", AnalysisID: "a1", Status: action.StatusComplete,
	})
	contKey, err := s.PutContinuation(ctx, "u1", cont)
	require.NoError(t, err)

	gotCont, ok, err := s.TakeContinuation(ctx, "u1", contKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cont.Kind, gotCont.Kind)
	assert.Equal(t, *cont.SetAnalysisStatus, *gotCont.SetAnalysisStatus)

	_, ok, err = s.TakeContinuation(ctx, "u1", contKey)
	require.NoError(t, err)
	assert.False(t, ok)

	gotCtx, ok, err := s.TakeContext(ctx, "u1", ctxKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c, gotCtx)

	_, ok, _ = s.TakeContext(ctx, "u1", ctxKey)
	assert.False(t, ok)
}

func TestRedisStore_PendingExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)

	key, err := s.PutContext(ctx, "u1", &action.Context{User: action.User{ID: "u1"}})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, ok, err := s.TakeContext(ctx, "u1", key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ConcurrentTakeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, 0)

	key, err := s.PutContinuation(ctx, "u1", action.NewCreateAnalysis("c", action.CreateAnalysis{ProjectID: "p", Name: "n"}))
	require.NoError(t, err)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := s.TakeContinuation(ctx, "u1", key); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestRedisStore_DefaultPendingTTL(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	assert.Equal(t, DefaultRedisPendingTTL, s.pendingTTL)
	assert.Equal(t, "test:", s.prefix)
}

func TestRedisStore_HasPending(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)

	ctxKey, err := s.PutContext(ctx, "u1", &action.Context{User: action.User{ID: "u1"}})
	require.NoError(t, err)
	contKey, err := s.PutContinuation(ctx, "u1", action.NewCreateAnalysis(ctxKey, action.CreateAnalysis{ProjectID: "p1", Name: "n"}))
	require.NoError(t, err)

	ok, err := s.HasContext(ctx, "u1", ctxKey)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasContinuation(ctx, "u1", contKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:user:u1:ctx:"+ctxKey), "checking must not consume the entry")

	_, ok, err = s.TakeContinuation(ctx, "u1", contKey)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.HasContinuation(ctx, "u1", contKey)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = s.HasContext(ctx, "u1", ctxKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
