// Package redisstore provides the durable Redis-backed tokens.Store used by
// the composition root. Each provider variant maps to one hash whose fields
// are the token kinds, so Clear is a single DEL and per-key writes are
// independent HSET operations.
package redisstore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/tokens"
)

const keyPrefix = "sessionkit:tokens:"

var _ tokens.Store = (*Store)(nil)

// Store implements tokens.Store on top of a Redis client.
type Store struct {
	client *redis.Client
}

// New wraps an already-connected Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, variant provider.Variant, kind tokens.Kind) (string, bool, error) {
	v, err := s.client.HGet(ctx, key(variant), string(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[Store.Get] HGET")
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, variant provider.Variant, kind tokens.Kind, value string) error {
	if err := s.client.HSet(ctx, key(variant), string(kind), value).Err(); err != nil {
		return errors.Wrap(err, "[Store.Set] HSET")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, variant provider.Variant) error {
	if err := s.client.Del(ctx, key(variant)).Err(); err != nil {
		return errors.Wrap(err, "[Store.Clear] DEL")
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	keys := make([]string, 0, len(provider.Variants()))
	for _, v := range provider.Variants() {
		keys = append(keys, key(v))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "[Store.ClearAll] DEL")
	}
	return nil
}

func key(variant provider.Variant) string {
	return fmt.Sprintf("%s%s", keyPrefix, variant)
}
