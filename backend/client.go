package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swypapp/sessionkit/internal/utils"
	"github.com/swypapp/sessionkit/provider"
)

const defaultRequestTimeout = 10 * time.Second

var _ Gateway = (*Client)(nil)

// Client is the HTTP implementation of Gateway against the app backend's
// JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client (primarily for tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a Gateway talking to the backend at baseURL
// (e.g. "https://api.swyp.app").
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type kakaoLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

type appleLoginRequest struct {
	UserID            string `json:"userId"`
	IdentityToken     string `json:"identityToken"`
	AuthorizationCode string `json:"authorizationCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshTokenInfo struct {
		Token string `json:"token"`
	} `json:"refreshTokenInfo"`
}

type memberResponse struct {
	MemberID string `json:"memberId"`
	Nickname string `json:"nickname"`
	ImageURL string `json:"imageUrl"`
}

func (c *Client) ExchangeCredential(ctx context.Context, variant provider.Variant, cred *provider.Credential) (*Session, error) {
	var (
		path string
		body any
	)
	switch variant {
	case provider.Kakao:
		path = "/auth/kakao"
		body = kakaoLoginRequest{AccessToken: cred.AccessToken}
	case provider.Apple:
		path = "/auth/apple"
		body = appleLoginRequest{
			UserID:            cred.Proof.UserID,
			IdentityToken:     cred.Proof.IdentityToken,
			AuthorizationCode: cred.Proof.AuthorizationCode,
		}
	default:
		return nil, errors.Errorf("[Client.ExchangeCredential] unsupported provider %q", variant)
	}

	var tr tokenResponse
	if err := c.postJSON(ctx, path, body, &tr); err != nil {
		return nil, errors.Wrap(err, "[Client.ExchangeCredential] exchange")
	}

	profile, err := c.FetchProfile(ctx, tr.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.ExchangeCredential] fetch profile")
	}

	c.log.Debug().Str("provider", variant.String()).Str("member_id", profile.ID).Msg("credential exchange succeeded")
	return &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshTokenInfo.Token,
		Profile:      *profile,
	}, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var tr tokenResponse
	err := c.postJSON(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &tr)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden) {
			return "", errors.Wrap(ErrRefreshExpired, "[Client.Refresh]")
		}
		return "", errors.Wrap(err, "[Client.Refresh]")
	}
	return tr.AccessToken, nil
}

func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/members/me", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.FetchProfile] build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var mr memberResponse
	if err := c.do(req, &mr); err != nil {
		return nil, errors.Wrap(err, "[Client.FetchProfile]")
	}
	profile := &Profile{ID: mr.MemberID, Nickname: mr.Nickname}
	// The backend sends "" rather than omitting the field when the member
	// has no profile image.
	if mr.ImageURL != "" {
		profile.ProfileImageURL = utils.Ptr(mr.ImageURL)
	}
	return profile, nil
}

// statusError carries a non-2xx backend response so callers can map specific
// HTTP statuses to sentinel errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrRejected }

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", req.URL.String()).Msg("backend request failed")
		return errors.Wrapf(ErrTransport, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(ErrTransport, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
