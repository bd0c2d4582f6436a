// Package session owns the current Account and application Phase and runs
// the auto-login reconciliation that decides, at process start, which phase
// the user is in. All mutations are serialized behind one mutex; the only
// suspension points are the calls into the provider and backend gateways,
// and every reconciliation result is guarded by a generation token so an
// explicit login or logout that lands mid-flight wins.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swypapp/sessionkit/account"
	"github.com/swypapp/sessionkit/backend"
	"github.com/swypapp/sessionkit/consent"
	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/tokens"
)

// Deps holds every collaborator the Controller needs. The Controller never
// touches underlying storage directly; the stores are its only capability.
type Deps struct {
	Tokens    tokens.Store
	Consent   consent.FlagStore
	Providers map[provider.Variant]provider.Gateway
	Backend   backend.Gateway
}

// Controller is the session state machine. Create one per process in the
// composition root and inject it into consumers; there is no package-level
// instance.
type Controller struct {
	deps    Deps
	log     zerolog.Logger
	nowTime func() time.Time

	mu            sync.Mutex
	phase         Phase
	account       *account.Account
	generation    uint64
	bootstrapping bool
	subs          map[*Subscription]struct{}
}

// Option modifies a Controller at construction time.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) { c.nowTime = nowFunc }
}

// NewController initializes a Controller with required dependencies.
func NewController(deps Deps, options ...Option) (*Controller, error) {
	if deps.Tokens == nil {
		return nil, errors.New("[NewController] Tokens store is required")
	}
	if deps.Consent == nil {
		return nil, errors.New("[NewController] Consent store is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("[NewController] Backend gateway is required")
	}
	if len(deps.Providers) == 0 {
		return nil, errors.New("[NewController] at least one provider gateway is required")
	}

	c := &Controller{
		deps:    deps,
		log:     zerolog.Nop(),
		nowTime: time.Now,
		phase:   PhaseUnauthenticated,
		subs:    make(map[*Subscription]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Phase returns the current application phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Account returns a copy of the signed-in account, or nil when
// unauthenticated.
func (c *Controller) Account() *account.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil {
		return nil
	}
	acct := *c.account
	return &acct
}

// Bootstrap runs the auto-login reconciliation once at process start and
// publishes the resulting phase. At most one reconciliation may be in
// flight; a second concurrent call returns ErrBootstrapInFlight. When an
// explicit Logout or CompleteLogin lands while Bootstrap is suspended on a
// network call, the reconciliation result is discarded and ErrSuperseded is
// returned.
func (c *Controller) Bootstrap(ctx context.Context) (Phase, error) {
	c.mu.Lock()
	if c.bootstrapping {
		c.mu.Unlock()
		return c.Phase(), ErrBootstrapInFlight
	}
	c.bootstrapping = true
	gen := c.generation
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.bootstrapping = false
		c.mu.Unlock()
	}()

	attempt := uuid.New().String()
	log := c.log.With().Str("attempt", attempt).Logger()

	// Step 1: which provider has a stored credential? Kakao is checked
	// first; that precedence is deliberate, not incidental map order.
	variant, found, err := c.storedProvider(ctx)
	if err != nil {
		return c.Phase(), errors.Wrap(err, "[Controller.Bootstrap] scan stored credentials")
	}
	if !found {
		log.Info().Msg("no stored provider credential, login required")
		return c.applyPhase(gen, PhaseUnauthenticated, nil)
	}

	gateway, ok := c.deps.Providers[variant]
	if !ok {
		return c.Phase(), errors.Errorf("[Controller.Bootstrap] no gateway for provider %q", variant)
	}
	log = log.With().Str("provider", variant.String()).Logger()

	// Step 2: does the provider still accept the stored credential?
	// A transport failure is treated the same as a rejection: staying
	// silently signed in on an ambiguous network error is worse than
	// asking the user to log in again.
	if err := gateway.ValidateSession(ctx); err != nil {
		if errors.Is(err, provider.ErrTransport) {
			log.Warn().Err(err).Msg("provider unreachable, treating session as invalid")
		} else {
			log.Info().Err(err).Msg("provider session invalid")
		}
		return c.applyLogout(ctx, gen, variant)
	}

	// Step 3: an existing backend access token keeps the session alive
	// without a profile re-fetch. Opaque tokens are always presented
	// as-is; only a JWT whose exp is provably in the past skips this
	// and falls through to the refresh step.
	access, haveAccess, err := c.deps.Tokens.Get(ctx, variant, tokens.BackendAccess)
	if err != nil {
		return c.Phase(), errors.Wrap(err, "[Controller.Bootstrap] read backend access token")
	}
	if haveAccess && backend.AccessTokenLive(access, c.nowTime()) {
		refresh, _, err := c.deps.Tokens.Get(ctx, variant, tokens.BackendRefresh)
		if err != nil {
			return c.Phase(), errors.Wrap(err, "[Controller.Bootstrap] read backend refresh token")
		}
		phase, err := c.phaseForConsent(ctx, variant)
		if err != nil {
			return c.Phase(), err
		}
		log.Info().Str("phase", phase.String()).Msg("backend access token present, session kept")
		return c.applyPhase(gen, phase, &account.Account{
			Provider:     variant,
			AccessToken:  access,
			RefreshToken: refresh,
		})
	}

	// Step 4: without a refresh token there is nothing left to try.
	refresh, haveRefresh, err := c.deps.Tokens.Get(ctx, variant, tokens.BackendRefresh)
	if err != nil {
		return c.Phase(), errors.Wrap(err, "[Controller.Bootstrap] read backend refresh token")
	}
	if !haveRefresh {
		log.Info().Msg("no backend refresh token, login required")
		return c.applyLogout(ctx, gen, variant)
	}

	// Step 5: refresh the backend session. Expired and transport failures
	// both resolve to logout here; the distinction matters only to
	// explicit login flows.
	newAccess, err := c.deps.Backend.Refresh(ctx, refresh)
	if err != nil {
		log.Info().Err(err).Msg("backend refresh failed")
		return c.applyLogout(ctx, gen, variant)
	}

	phase, err := c.phaseForConsent(ctx, variant)
	if err != nil {
		return c.Phase(), err
	}
	return c.applyRefreshed(ctx, gen, variant, newAccess, refresh, phase, log)
}

// CompleteLogin installs a freshly logged-in account. The other provider's
// tokens are cleared first (one signed-in identity at a time), the account's
// backend tokens are persisted, and the phase lands on NeedsConsent or
// SteadyState depending on the stored consent flag.
func (c *Controller) CompleteLogin(ctx context.Context, acct account.Account) (Phase, error) {
	if !acct.Provider.IsValid() {
		return c.Phase(), errors.Errorf("[Controller.CompleteLogin] unsupported provider %q", acct.Provider)
	}

	phase, err := c.phaseForConsent(ctx, acct.Provider)
	if err != nil {
		return c.Phase(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	for _, other := range provider.Variants() {
		if other == acct.Provider {
			continue
		}
		if err := c.deps.Tokens.Clear(ctx, other); err != nil {
			return c.phase, errors.Wrapf(err, "[Controller.CompleteLogin] clear %s tokens", other)
		}
	}
	if err := c.deps.Tokens.Set(ctx, acct.Provider, tokens.BackendAccess, acct.AccessToken); err != nil {
		return c.phase, errors.Wrap(err, "[Controller.CompleteLogin] persist access token")
	}
	if err := c.deps.Tokens.Set(ctx, acct.Provider, tokens.BackendRefresh, acct.RefreshToken); err != nil {
		return c.phase, errors.Wrap(err, "[Controller.CompleteLogin] persist refresh token")
	}

	c.account = &acct
	c.setPhaseLocked(phase)
	c.log.Info().Str("provider", acct.Provider.String()).Str("phase", phase.String()).Msg("login completed")
	return c.phase, nil
}

// CompleteConsent marks the consent flag for the current account's provider
// and moves on to onboarding.
func (c *Controller) CompleteConsent(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil {
		return ErrNoAccount
	}
	if c.phase != PhaseNeedsConsent {
		return errors.Wrapf(ErrInvalidTransition, "consent completed in phase %s", c.phase)
	}
	if err := c.deps.Consent.SetAgreed(ctx, c.account.Provider); err != nil {
		return errors.Wrap(err, "[Controller.CompleteConsent] persist consent flag")
	}
	c.generation++
	c.setPhaseLocked(PhaseNeedsOnboardingImport)
	return nil
}

// CompleteOnboardingImport records that the contact-import step finished.
func (c *Controller) CompleteOnboardingImport(ctx context.Context) error {
	return c.advance(PhaseNeedsOnboardingImport, PhaseNeedsOnboardingFrequency)
}

// CompleteOnboardingFrequency records that the frequency-setup step
// finished; the session reaches steady state.
func (c *Controller) CompleteOnboardingFrequency(ctx context.Context) error {
	return c.advance(PhaseNeedsOnboardingFrequency, PhaseSteadyState)
}

// Logout clears the current provider's tokens, discards the in-memory
// account, and returns to the unauthenticated phase. Safe to call from any
// phase, including while a reconciliation is in flight; the reconciliation
// result will be discarded.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logoutLocked(ctx, c.currentVariantLocked())
}

func (c *Controller) advance(from, to Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account == nil {
		return ErrNoAccount
	}
	if c.phase != from {
		return errors.Wrapf(ErrInvalidTransition, "%s completed in phase %s", from, c.phase)
	}
	c.generation++
	c.setPhaseLocked(to)
	return nil
}

// storedProvider returns the first variant, in precedence order, holding a
// stored provider credential.
func (c *Controller) storedProvider(ctx context.Context) (provider.Variant, bool, error) {
	for _, v := range provider.Variants() {
		_, ok, err := c.deps.Tokens.Get(ctx, v, tokens.ProviderAccess)
		if err != nil {
			return "", false, errors.Wrapf(err, "read %s credential", v)
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// phaseForConsent decides between NeedsConsent and SteadyState. Must be
// called without the controller mutex held.
func (c *Controller) phaseForConsent(ctx context.Context, variant provider.Variant) (Phase, error) {
	agreed, err := c.deps.Consent.IsAgreed(ctx, variant)
	if err != nil {
		return "", errors.Wrap(err, "read consent flag")
	}
	if agreed {
		return PhaseSteadyState, nil
	}
	return PhaseNeedsConsent, nil
}

// applyPhase commits a reconciliation outcome, unless a newer explicit
// mutation already landed.
func (c *Controller) applyPhase(gen uint64, phase Phase, acct *account.Account) (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.log.Info().Str("discarded_phase", phase.String()).Msg("stale reconciliation result discarded")
		return c.phase, ErrSuperseded
	}
	c.generation++
	c.account = acct
	c.setPhaseLocked(phase)
	return c.phase, nil
}

// applyLogout is the reconciliation-internal logout: it runs only when no
// newer mutation superseded the attempt.
func (c *Controller) applyLogout(ctx context.Context, gen uint64, variant provider.Variant) (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.log.Info().Msg("stale reconciliation logout discarded")
		return c.phase, ErrSuperseded
	}
	if err := c.logoutLocked(ctx, variant); err != nil {
		return c.phase, err
	}
	return c.phase, nil
}

// applyRefreshed persists the refreshed access token and commits the phase.
func (c *Controller) applyRefreshed(ctx context.Context, gen uint64, variant provider.Variant, access, refresh string, phase Phase, log zerolog.Logger) (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		log.Info().Msg("stale refresh result discarded")
		return c.phase, ErrSuperseded
	}
	if err := c.deps.Tokens.Set(ctx, variant, tokens.BackendAccess, access); err != nil {
		return c.phase, errors.Wrap(err, "[Controller.Bootstrap] persist refreshed access token")
	}
	c.generation++
	c.account = &account.Account{
		Provider:     variant,
		AccessToken:  access,
		RefreshToken: refresh,
	}
	c.setPhaseLocked(phase)
	log.Info().Str("phase", phase.String()).Msg("backend session refreshed")
	return c.phase, nil
}

func (c *Controller) logoutLocked(ctx context.Context, variant provider.Variant) error {
	c.generation++

	var err error
	if variant.IsValid() {
		err = c.deps.Tokens.Clear(ctx, variant)
	} else {
		// No known provider; wipe everything rather than guess.
		err = c.deps.Tokens.ClearAll(ctx)
	}
	if err != nil {
		return errors.Wrap(err, "[Controller.Logout] clear tokens")
	}

	c.account = nil
	c.setPhaseLocked(PhaseUnauthenticated)
	c.log.Info().Msg("logged out")
	return nil
}

// currentVariantLocked resolves which provider's tokens a logout should
// clear when no reconciliation supplied one.
func (c *Controller) currentVariantLocked() provider.Variant {
	if c.account != nil {
		return c.account.Provider
	}
	return ""
}

func (c *Controller) setPhaseLocked(p Phase) {
	if c.phase == p {
		return
	}
	c.phase = p
	c.publishLocked(p)
}
