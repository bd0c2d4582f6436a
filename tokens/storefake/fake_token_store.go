package storefake

import (
	"context"
	"sync"

	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/tokens"
)

var _ tokens.Store = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory tokens.Store for tests.
type FakeTokenStore struct {
	values map[provider.Variant]map[tokens.Kind]string
	lock   sync.RWMutex
}

func NewFakeTokenStore() *FakeTokenStore {
	return &FakeTokenStore{
		values: make(map[provider.Variant]map[tokens.Kind]string),
	}
}

func (s *FakeTokenStore) Get(_ context.Context, variant provider.Variant, kind tokens.Kind) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	byKind, ok := s.values[variant]
	if !ok {
		return "", false, nil
	}
	v, ok := byKind[kind]
	return v, ok, nil
}

func (s *FakeTokenStore) Set(_ context.Context, variant provider.Variant, kind tokens.Kind, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	byKind, ok := s.values[variant]
	if !ok {
		byKind = make(map[tokens.Kind]string)
		s.values[variant] = byKind
	}
	byKind[kind] = value
	return nil
}

func (s *FakeTokenStore) Clear(_ context.Context, variant provider.Variant) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, variant)
	return nil
}

func (s *FakeTokenStore) ClearAll(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values = make(map[provider.Variant]map[tokens.Kind]string)
	return nil
}
