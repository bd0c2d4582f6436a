package gatewayfake

import (
	"context"
	"sync"

	"github.com/swypapp/sessionkit/backend"
	"github.com/swypapp/sessionkit/provider"
)

var _ backend.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scriptable backend.Gateway for tests. Each operation
// returns the configured result and counts its calls. A nil func falls back
// to a zero-value success.
type FakeGateway struct {
	ExchangeFunc func(variant provider.Variant, cred *provider.Credential) (*backend.Session, error)
	RefreshFunc  func(refreshToken string) (string, error)
	ProfileFunc  func(accessToken string) (*backend.Profile, error)

	// RefreshStarted, when set, receives one element as Refresh is
	// entered, so a test can act while the call is in flight.
	RefreshStarted chan struct{}
	// RefreshGate, when set, is received from before RefreshFunc runs so a
	// test can hold an in-flight refresh open.
	RefreshGate chan struct{}

	lock          sync.Mutex
	ExchangeCalls int
	RefreshCalls  int
	ProfileCalls  int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// TotalCalls reports how many backend operations have run, for
// "no backend calls were made" assertions.
func (f *FakeGateway) TotalCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.ExchangeCalls + f.RefreshCalls + f.ProfileCalls
}

func (f *FakeGateway) ExchangeCredential(_ context.Context, variant provider.Variant, cred *provider.Credential) (*backend.Session, error) {
	f.lock.Lock()
	f.ExchangeCalls++
	f.lock.Unlock()

	if f.ExchangeFunc == nil {
		return &backend.Session{}, nil
	}
	return f.ExchangeFunc(variant, cred)
}

func (f *FakeGateway) Refresh(ctx context.Context, refreshToken string) (string, error) {
	f.lock.Lock()
	f.RefreshCalls++
	f.lock.Unlock()

	if f.RefreshStarted != nil {
		f.RefreshStarted <- struct{}{}
	}
	if f.RefreshGate != nil {
		select {
		case <-f.RefreshGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.RefreshFunc == nil {
		return "", nil
	}
	return f.RefreshFunc(refreshToken)
}

func (f *FakeGateway) FetchProfile(_ context.Context, accessToken string) (*backend.Profile, error) {
	f.lock.Lock()
	f.ProfileCalls++
	f.lock.Unlock()

	if f.ProfileFunc == nil {
		return &backend.Profile{}, nil
	}
	return f.ProfileFunc(accessToken)
}
