// Package login orchestrates an explicit user-initiated login: provider
// authentication, backend credential exchange, token persistence, profile
// fetch, and finally handing the account to the session controller. The
// reconciliation that runs at startup lives in the session package; this is
// the interactive path.
package login

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swypapp/sessionkit/account"
	"github.com/swypapp/sessionkit/backend"
	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/session"
	"github.com/swypapp/sessionkit/tokens"
)

// Outcome tells the caller how a login attempt ended, for user-visible
// messaging. Cancelled is not an error condition and leaves no local trace.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
	OutcomeProviderFailed
	OutcomeBackendFailed
)

// Result is the typed outcome of a login attempt.
type Result struct {
	Outcome   Outcome
	Phase     session.Phase
	Retryable bool // transport-level failures are worth retrying; rejections are not
	Err       error
}

// Service drives explicit logins.
type Service struct {
	controller *session.Controller
	tokens     tokens.Store
	backend    backend.Gateway
	providers  map[provider.Variant]provider.Gateway
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService initializes a login Service with required dependencies.
func NewService(controller *session.Controller, tokenStore tokens.Store, gw backend.Gateway, providers map[provider.Variant]provider.Gateway, options ...Option) (*Service, error) {
	if controller == nil {
		return nil, errors.New("[NewService] controller is required")
	}
	if tokenStore == nil {
		return nil, errors.New("[NewService] token store is required")
	}
	if gw == nil {
		return nil, errors.New("[NewService] backend gateway is required")
	}
	if len(providers) == 0 {
		return nil, errors.New("[NewService] at least one provider gateway is required")
	}

	s := &Service{
		controller: controller,
		tokens:     tokenStore,
		backend:    gw,
		providers:  providers,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login runs the full interactive flow for the variant. Side effects happen
// in the original client's order: provider tokens are stored as soon as the
// provider hands them over, backend tokens after a successful exchange, and
// the controller is updated last. A backend failure after provider
// authentication leaves the session controller untouched.
func (s *Service) Login(ctx context.Context, variant provider.Variant) Result {
	gateway, ok := s.providers[variant]
	if !ok {
		return Result{
			Outcome: OutcomeProviderFailed,
			Phase:   s.controller.Phase(),
			Err:     errors.Errorf("[Service.Login] no gateway for provider %q", variant),
		}
	}
	log := s.log.With().Str("provider", variant.String()).Logger()

	cred, err := gateway.Authenticate(ctx)
	if err != nil {
		if errors.Is(err, provider.ErrCancelled) {
			log.Info().Msg("login cancelled by user")
			return Result{Outcome: OutcomeCancelled, Phase: s.controller.Phase()}
		}
		log.Warn().Err(err).Msg("provider authentication failed")
		return Result{
			Outcome:   OutcomeProviderFailed,
			Phase:     s.controller.Phase(),
			Retryable: errors.Is(err, provider.ErrTransport),
			Err:       err,
		}
	}

	if err := s.storeProviderTokens(ctx, variant, cred); err != nil {
		return Result{Outcome: OutcomeProviderFailed, Phase: s.controller.Phase(), Err: err}
	}

	sess, err := s.backend.ExchangeCredential(ctx, variant, cred)
	if err != nil {
		log.Warn().Err(err).Msg("backend credential exchange failed")
		return Result{
			Outcome:   OutcomeBackendFailed,
			Phase:     s.controller.Phase(),
			Retryable: errors.Is(err, backend.ErrTransport),
			Err:       err,
		}
	}

	phase, err := s.controller.CompleteLogin(ctx, account.Account{
		ID:              sess.Profile.ID,
		Name:            sess.Profile.Nickname,
		ProfileImageURL: sess.Profile.ProfileImageURL,
		Provider:        variant,
		AccessToken:     sess.AccessToken,
		RefreshToken:    sess.RefreshToken,
	})
	if err != nil {
		return Result{Outcome: OutcomeBackendFailed, Phase: s.controller.Phase(), Err: err}
	}

	log.Info().Str("member_id", sess.Profile.ID).Str("phase", phase.String()).Msg("login succeeded")
	return Result{Outcome: OutcomeSuccess, Phase: phase}
}

func (s *Service) storeProviderTokens(ctx context.Context, variant provider.Variant, cred *provider.Credential) error {
	if err := s.tokens.Set(ctx, variant, tokens.ProviderAccess, cred.AccessToken); err != nil {
		return errors.Wrap(err, "[Service.Login] store provider access token")
	}
	if cred.RefreshToken == "" {
		return nil
	}
	if err := s.tokens.Set(ctx, variant, tokens.ProviderRefresh, cred.RefreshToken); err != nil {
		return errors.Wrap(err, "[Service.Login] store provider refresh token")
	}
	return nil
}
