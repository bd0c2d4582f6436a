package backend

import (
	"context"
	"errors"

	"github.com/swypapp/sessionkit/provider"
)

// Profile is the account information the backend reports for the bearer of
// an access token.
type Profile struct {
	ID              string
	Nickname        string
	ProfileImageURL *string
}

// Session is the backend-issued token pair plus the profile returned by a
// successful credential exchange.
type Session struct {
	AccessToken  string
	RefreshToken string
	Profile      Profile
}

var (
	// ErrRefreshExpired means the refresh token itself is no longer valid.
	// Callers must not retry the refresh; a full re-login is required.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrTransport means the backend could not be reached.
	ErrTransport = errors.New("backend transport failure")
	// ErrRejected means the backend understood the request and refused it.
	ErrRejected = errors.New("backend rejected request")
)

// Gateway abstracts the backend auth API. All three operations are
// single-shot network calls with no internal retry; the caller owns retry
// policy.
type Gateway interface {
	// ExchangeCredential turns a validated provider credential into a
	// backend session.
	ExchangeCredential(ctx context.Context, variant provider.Variant, cred *provider.Credential) (*Session, error)

	// Refresh exchanges a refresh token for a new access token. Returns an
	// error wrapping ErrRefreshExpired when the refresh token is dead, or
	// ErrTransport when the exchange could not complete.
	Refresh(ctx context.Context, refreshToken string) (string, error)

	// FetchProfile returns the profile for the access token's account.
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}
