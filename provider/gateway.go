package provider

import "context"

// Gateway abstracts one identity provider. Implementations live in the
// kakao and apple subpackages; tests use providerfake.
type Gateway interface {
	// Variant names the provider this gateway talks to.
	Variant() Variant

	// ValidateSession checks whether the stored provider credential is
	// still accepted by the provider. It never mutates local state.
	// Returns nil when the session is valid, ErrInvalidSession when the
	// provider rejects it, or an error wrapping ErrTransport when the
	// check could not complete.
	ValidateSession(ctx context.Context) error

	// Authenticate drives the provider's login flow and returns a fresh
	// credential. Returns an error wrapping ErrCancelled when the user
	// backed out, ErrRejected when the provider refused, or ErrTransport
	// on network failure.
	Authenticate(ctx context.Context) (*Credential, error)
}

// Authenticator is the hand-off to the provider's native login UI. The host
// application supplies one per provider; the gateways normalize its results
// into the package's sentinel errors.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Credential, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context) (*Credential, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context) (*Credential, error) {
	return f(ctx)
}
