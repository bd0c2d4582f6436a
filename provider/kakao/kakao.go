// Package kakao implements the Kakao identity-provider gateway. Session
// validation hits Kakao's access-token-info endpoint with the stored provider
// token; provider token refresh goes through Kakao's standard OAuth2 token
// endpoint.
package kakao

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/tokens"
)

const (
	authURL        = "https://kauth.kakao.com/oauth/authorize"
	tokenURL       = "https://kauth.kakao.com/oauth/token"
	tokenInfoURL   = "https://kapi.kakao.com/v1/user/access_token_info"
	defaultTimeout = 10 * time.Second
)

var _ provider.Gateway = (*Gateway)(nil)

// Gateway validates and refreshes Kakao sessions.
type Gateway struct {
	store         tokens.Store
	authenticator provider.Authenticator
	oauth         *oauth2.Config
	http          *http.Client
	log           zerolog.Logger
	infoURL       string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client used for the token-info call.
func WithHTTPClient(h *http.Client) Option {
	return func(g *Gateway) { g.http = h }
}

// WithLogger sets the gateway logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithTokenInfoURL overrides the validation endpoint (for tests).
func WithTokenInfoURL(url string) Option {
	return func(g *Gateway) { g.infoURL = url }
}

// WithTokenURL overrides the OAuth2 token endpoint (for tests).
func WithTokenURL(url string) Option {
	return func(g *Gateway) { g.oauth.Endpoint.TokenURL = url }
}

// New creates the Kakao gateway. authenticator is the host app's bridge to
// the native Kakao SDK login; it may be nil when only auto-login is needed.
func New(store tokens.Store, clientID string, authenticator provider.Authenticator, options ...Option) *Gateway {
	g := &Gateway{
		store:         store,
		authenticator: authenticator,
		oauth: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		http:    &http.Client{Timeout: defaultTimeout},
		log:     zerolog.Nop(),
		infoURL: tokenInfoURL,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Gateway) Variant() provider.Variant { return provider.Kakao }

// ValidateSession asks Kakao whether the stored access token is still
// accepted. A 401 from the token-info endpoint triggers one provider-token
// refresh through the OAuth2 token endpoint before the session is reported
// invalid, matching the auto-refresh the Kakao SDK performs on-device.
// Anything else non-2xx, or a failed request, is a transport failure.
func (g *Gateway) ValidateSession(ctx context.Context) error {
	token, ok, err := g.store.Get(ctx, provider.Kakao, tokens.ProviderAccess)
	if err != nil {
		return errors.Wrap(err, "[Gateway.ValidateSession] read stored token")
	}
	if !ok {
		return errors.Wrap(provider.ErrInvalidSession, "no stored kakao token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.infoURL, nil)
	if err != nil {
		return errors.Wrap(err, "[Gateway.ValidateSession] build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.http.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Msg("kakao token-info request failed")
		return errors.Wrapf(provider.ErrTransport, "token info: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		g.log.Debug().Msg("kakao rejected access token, attempting provider refresh")
		return g.refreshSession(ctx)
	default:
		return errors.Wrapf(provider.ErrTransport, "token info returned %d", resp.StatusCode)
	}
}

// Authenticate runs the native Kakao login and normalizes its outcome.
func (g *Gateway) Authenticate(ctx context.Context) (*provider.Credential, error) {
	if g.authenticator == nil {
		return nil, errors.New("[Gateway.Authenticate] no authenticator configured")
	}
	cred, err := g.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.Authenticate] kakao login")
	}
	// Kakao's identity proof towards the backend is the access token.
	cred.Proof.IdentityToken = cred.AccessToken
	return cred, nil
}

// refreshSession runs a provider-token refresh and persists the new pair, so
// a follow-up validation or backend exchange sees the fresh token.
func (g *Gateway) refreshSession(ctx context.Context) error {
	tok, err := g.RefreshProviderToken(ctx)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, provider.Kakao, tokens.ProviderAccess, tok.AccessToken); err != nil {
		return errors.Wrap(err, "[Gateway.ValidateSession] store refreshed access token")
	}
	if tok.RefreshToken != "" {
		if err := g.store.Set(ctx, provider.Kakao, tokens.ProviderRefresh, tok.RefreshToken); err != nil {
			return errors.Wrap(err, "[Gateway.ValidateSession] store rotated refresh token")
		}
	}
	g.log.Info().Msg("kakao provider tokens refreshed")
	return nil
}

// RefreshProviderToken exchanges the stored Kakao refresh token for a new
// access token pair through the OAuth2 token endpoint and returns it. A token
// endpoint rejection (expired or revoked refresh token) means the session is
// gone; anything else is a transport failure.
func (g *Gateway) RefreshProviderToken(ctx context.Context) (*oauth2.Token, error) {
	refresh, ok, err := g.store.Get(ctx, provider.Kakao, tokens.ProviderRefresh)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.RefreshProviderToken] read refresh token")
	}
	if !ok {
		return nil, errors.Wrap(provider.ErrInvalidSession, "no stored kakao refresh token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	src := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return nil, errors.Wrapf(provider.ErrInvalidSession, "kakao rejected refresh token: %v", err)
		}
		return nil, errors.Wrapf(provider.ErrTransport, "refresh token exchange: %v", err)
	}
	return tok, nil
}
