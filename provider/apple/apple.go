// Package apple implements the Apple identity-provider gateway. Apple issues
// no refresh token to the client; the stored credential is the identity token
// from Sign in with Apple, verified against Apple's published JWKS.
package apple

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/tokens"
)

const issuerURL = "https://appleid.apple.com"

var _ provider.Gateway = (*Gateway)(nil)

// Verifier checks a raw identity token. Satisfied by (*oidc.IDTokenVerifier)
// via VerifierFromOIDC; tests substitute their own.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, rawIDToken string) error

func (f VerifierFunc) Verify(ctx context.Context, rawIDToken string) error {
	return f(ctx, rawIDToken)
}

// Gateway validates Apple sessions.
type Gateway struct {
	store         tokens.Store
	authenticator provider.Authenticator
	clientID      string
	issuer        string
	log           zerolog.Logger

	mu       sync.Mutex
	verifier Verifier
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithVerifier replaces the JWKS-backed verifier (for tests, or to disable
// online verification in favour of the local expiry check only).
func WithVerifier(v Verifier) Option {
	return func(g *Gateway) { g.verifier = v }
}

// WithLogger sets the gateway logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithIssuerURL overrides the OIDC issuer used for JWKS discovery (for tests).
func WithIssuerURL(url string) Option {
	return func(g *Gateway) { g.issuer = url }
}

// New creates the Apple gateway. clientID is the app's bundle identifier,
// which Apple puts in the identity token's aud claim.
func New(store tokens.Store, clientID string, authenticator provider.Authenticator, options ...Option) *Gateway {
	g := &Gateway{
		store:         store,
		authenticator: authenticator,
		clientID:      clientID,
		issuer:        issuerURL,
		log:           zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Gateway) Variant() provider.Variant { return provider.Apple }

// ValidateSession checks the stored identity token. With a verifier
// configured (the default outside tests) the token's signature and claims are
// checked against Apple's JWKS; otherwise only the exp claim is inspected
// locally, matching what a device can do offline.
func (g *Gateway) ValidateSession(ctx context.Context) error {
	raw, ok, err := g.store.Get(ctx, provider.Apple, tokens.ProviderAccess)
	if err != nil {
		return errors.Wrap(err, "[Gateway.ValidateSession] read stored token")
	}
	if !ok {
		return errors.Wrap(provider.ErrInvalidSession, "no stored apple identity token")
	}

	v, err := g.activeVerifier(ctx)
	if err != nil {
		// Could not reach Apple's discovery endpoint; this says
		// nothing about the token itself.
		return errors.Wrapf(provider.ErrTransport, "oidc discovery: %v", err)
	}

	if err := v.Verify(ctx, raw); err != nil {
		g.log.Debug().Err(err).Msg("apple identity token rejected")
		return errors.Wrapf(provider.ErrInvalidSession, "verify identity token: %v", err)
	}
	return nil
}

// activeVerifier returns the configured verifier, building the JWKS-backed
// one on first use. Built lazily because discovery needs the network; a
// failed attempt is retried on the next call. Safe for concurrent callers.
func (g *Gateway) activeVerifier(ctx context.Context) (Verifier, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.verifier != nil {
		return g.verifier, nil
	}
	v, err := g.jwksVerifier(ctx)
	if err != nil {
		return nil, err
	}
	g.verifier = v
	return v, nil
}

// Authenticate runs the native Sign in with Apple flow.
func (g *Gateway) Authenticate(ctx context.Context) (*provider.Credential, error) {
	if g.authenticator == nil {
		return nil, errors.New("[Gateway.Authenticate] no authenticator configured")
	}
	cred, err := g.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.Authenticate] apple login")
	}
	// The identity token doubles as the locally stored credential.
	cred.AccessToken = cred.Proof.IdentityToken
	cred.RefreshToken = ""
	return cred, nil
}

func (g *Gateway) jwksVerifier(ctx context.Context) (Verifier, error) {
	oidcProvider, err := oidc.NewProvider(ctx, g.issuer)
	if err != nil {
		return nil, err
	}
	idVerifier := oidcProvider.Verifier(&oidc.Config{ClientID: g.clientID})
	return VerifierFunc(func(ctx context.Context, rawIDToken string) error {
		_, err := idVerifier.Verify(ctx, rawIDToken)
		return err
	}), nil
}

// ExpiryOnlyVerifier checks just the identity token's exp claim, without
// signature verification. Used when the device should not depend on Apple's
// JWKS being reachable to stay signed in.
func ExpiryOnlyVerifier(now func() time.Time) Verifier {
	if now == nil {
		now = time.Now
	}
	return VerifierFunc(func(_ context.Context, rawIDToken string) error {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, claims); err != nil {
			return errors.Wrap(err, "parse identity token")
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return errors.New("identity token has no exp claim")
		}
		if !exp.After(now()) {
			return errors.New("identity token expired")
		}
		return nil
	})
}
