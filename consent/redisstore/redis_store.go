// Package redisstore persists consent flags in a single Redis hash keyed by
// provider variant.
package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/swypapp/sessionkit/consent"
	"github.com/swypapp/sessionkit/provider"
)

const flagsKey = "sessionkit:consent"

var _ consent.FlagStore = (*Store)(nil)

// Store implements consent.FlagStore on top of a Redis client.
type Store struct {
	client *redis.Client
}

// New wraps an already-connected Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) IsAgreed(ctx context.Context, variant provider.Variant) (bool, error) {
	v, err := s.client.HGet(ctx, flagsKey, variant.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Store.IsAgreed] HGET")
	}
	return v == "1", nil
}

func (s *Store) SetAgreed(ctx context.Context, variant provider.Variant) error {
	if err := s.client.HSet(ctx, flagsKey, variant.String(), "1").Err(); err != nil {
		return errors.Wrap(err, "[Store.SetAgreed] HSET")
	}
	return nil
}
