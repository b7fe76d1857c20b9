package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/kambashop/internal/adapters/storage"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoadSave(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	s := New(client, "sid-1", time.Hour)

	got, err := s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, "cart", []byte(`[]`)))
	got, err = s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	assert.True(t, mr.Exists("session:sid-1:cart"))
	mr.FastForward(2 * time.Hour)
	got, err = s.Load(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionsAreIsolated(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()
	require.NoError(t, New(client, "a", time.Hour).Save(ctx, "cart", []byte("A")))
	got, err := New(client, "b", time.Hour).Load(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisDown(t *testing.T) {
	mr, client := setup(t)
	mr.Close()
	s := New(client, "sid", time.Hour)
	_, err := s.Load(context.Background(), "cart")
	assert.Error(t, err)
	assert.Error(t, s.Save(context.Background(), "cart", []byte("x")))
}

func TestProviderUsesSessionCookie(t *testing.T) {
	_, client := setup(t)
	p := Provider{Client: client, TTL: time.Hour}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, p.For(w, r).Save(context.Background(), "cart", []byte("uno")))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, storage.SessionCookie, cookies[0].Name)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	got, err := p.For(httptest.NewRecorder(), r2).Load(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got))
}
