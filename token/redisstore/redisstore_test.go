package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/kiddiebus/kiddiebus-client/token/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testKey = "kiddiebus:tokens:test"

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, testKey), mr
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	pair, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, pair.Empty())

	want := token.Pair{AccessToken: "a-1", RefreshToken: "r-1"}
	require.NoError(t, s.Save(ctx, want))
	require.Equal(t, "a-1", mr.HGet(testKey, "access_token"))
	require.Equal(t, "r-1", mr.HGet(testKey, "refresh_token"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, s.Clear(ctx))
	require.False(t, mr.Exists(testKey))
}

func TestStore_IncompletePairIsAnError(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	mr.HSet(testKey, "access_token", "orphan")
	_, err := s.Load(ctx)
	require.Error(t, err)

	require.Error(t, s.Save(ctx, token.Pair{AccessToken: "a-only"}))
}

func TestDial(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := redisstore.Dial(context.Background(), "redis://"+mr.Addr()+"/0", testKey)
	require.NoError(t, err)
	defer s.Close()

	_, err = redisstore.Dial(context.Background(), "not a url", testKey)
	require.Error(t, err)
}
