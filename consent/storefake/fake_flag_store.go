package storefake

import (
	"context"
	"sync"

	"github.com/swypapp/sessionkit/consent"
	"github.com/swypapp/sessionkit/provider"
)

var _ consent.FlagStore = (*FakeFlagStore)(nil)

// FakeFlagStore is an in-memory consent.FlagStore for tests.
type FakeFlagStore struct {
	agreed map[provider.Variant]bool
	lock   sync.RWMutex
}

func NewFakeFlagStore() *FakeFlagStore {
	return &FakeFlagStore{agreed: make(map[provider.Variant]bool)}
}

func (s *FakeFlagStore) IsAgreed(_ context.Context, variant provider.Variant) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.agreed[variant], nil
}

func (s *FakeFlagStore) SetAgreed(_ context.Context, variant provider.Variant) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.agreed[variant] = true
	return nil
}
