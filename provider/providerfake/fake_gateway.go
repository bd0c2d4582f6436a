package providerfake

import (
	"context"
	"sync"

	"github.com/swypapp/sessionkit/provider"
)

var _ provider.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scriptable provider.Gateway for tests.
type FakeGateway struct {
	ProviderVariant  provider.Variant
	ValidateErr      error
	AuthenticateFunc func(ctx context.Context) (*provider.Credential, error)

	// ValidateStarted, when set, receives one element as ValidateSession
	// is entered, so a test can act while the call is in flight.
	ValidateStarted chan struct{}
	// ValidateGate, when set, is received from before ValidateSession
	// returns so a test can hold an in-flight validation open.
	ValidateGate chan struct{}

	lock              sync.Mutex
	ValidateCalls     int
	AuthenticateCalls int
}

func New(variant provider.Variant) *FakeGateway {
	return &FakeGateway{ProviderVariant: variant}
}

func (f *FakeGateway) Variant() provider.Variant { return f.ProviderVariant }

func (f *FakeGateway) ValidateSession(ctx context.Context) error {
	f.lock.Lock()
	f.ValidateCalls++
	f.lock.Unlock()

	if f.ValidateStarted != nil {
		f.ValidateStarted <- struct{}{}
	}
	if f.ValidateGate != nil {
		select {
		case <-f.ValidateGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.ValidateErr
}

func (f *FakeGateway) Authenticate(ctx context.Context) (*provider.Credential, error) {
	f.lock.Lock()
	f.AuthenticateCalls++
	f.lock.Unlock()

	if f.AuthenticateFunc == nil {
		return &provider.Credential{}, nil
	}
	return f.AuthenticateFunc(ctx)
}
