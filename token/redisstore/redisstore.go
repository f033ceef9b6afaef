// Package redisstore keeps the token pair in a Redis hash so several client
// processes on one host can share a session.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/redis/go-redis/v9"
)

const (
	fieldAccess  = "access_token"
	fieldRefresh = "refresh_token"
)

var _ token.Store = (*Store)(nil)

type Store struct {
	client redis.UniversalClient
	key    string
}

func New(client redis.UniversalClient, key string) *Store {
	return &Store{client: client, key: key}
}

// Dial parses a redis:// URL and checks the server is reachable
func Dial(ctx context.Context, url, key string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}
	return New(client, key), nil
}

func (s *Store) Load(ctx context.Context) (token.Pair, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return token.Pair{}, fmt.Errorf("redisstore.Load HGetAll: %w", err)
	}
	pair := token.Pair{AccessToken: values[fieldAccess], RefreshToken: values[fieldRefresh]}
	if !pair.Valid() {
		return token.Pair{}, errors.New("redisstore.Load: stored token pair is incomplete")
	}
	return pair, nil
}

// Save writes both fields with a single HSET, which Redis applies atomically
func (s *Store) Save(ctx context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return errors.New("redisstore.Save: refusing to store an incomplete token pair")
	}
	if err := s.client.HSet(ctx, s.key, fieldAccess, pair.AccessToken, fieldRefresh, pair.RefreshToken).Err(); err != nil {
		return fmt.Errorf("redisstore.Save HSet: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redisstore.Clear Del: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
