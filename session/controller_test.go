package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/swypapp/sessionkit/account"
	"github.com/swypapp/sessionkit/backend"
	"github.com/swypapp/sessionkit/backend/gatewayfake"
	consentfake "github.com/swypapp/sessionkit/consent/storefake"
	"github.com/swypapp/sessionkit/provider"
	"github.com/swypapp/sessionkit/provider/providerfake"
	"github.com/swypapp/sessionkit/session"
	"github.com/swypapp/sessionkit/tokens"
	tokenfake "github.com/swypapp/sessionkit/tokens/storefake"
)

const (
	testKakaoToken    = "kakao-access-token"
	testAppleIdentity = "apple-identity-token"
	testAccessToken   = "server-access-token"
	testRefreshToken  = "server-refresh-token"
	testMemberID      = "member-1"
	testMemberName    = "John Doe"
)

// testFixture holds all controller dependencies.
type testFixture struct {
	tokens     *tokenfake.FakeTokenStore
	consent    *consentfake.FakeFlagStore
	kakao      *providerfake.FakeGateway
	apple      *providerfake.FakeGateway
	backend    *gatewayfake.FakeGateway
	controller *session.Controller
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		tokens:  tokenfake.NewFakeTokenStore(),
		consent: consentfake.NewFakeFlagStore(),
		kakao:   providerfake.New(provider.Kakao),
		apple:   providerfake.New(provider.Apple),
		backend: gatewayfake.NewFakeGateway(),
	}

	controller, err := session.NewController(session.Deps{
		Tokens:  f.tokens,
		Consent: f.consent,
		Providers: map[provider.Variant]provider.Gateway{
			provider.Kakao: f.kakao,
			provider.Apple: f.apple,
		},
		Backend: f.backend,
	})
	require.NoError(t, err)

	f.controller = controller
	return f
}

// storeKakaoCredential seeds the token store as a completed Kakao login
// would have left it.
func (f *testFixture) storeKakaoCredential(t *testing.T, backendAccess, backendRefresh string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.ProviderAccess, testKakaoToken))
	if backendAccess != "" {
		require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.BackendAccess, backendAccess))
	}
	if backendRefresh != "" {
		require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.BackendRefresh, backendRefresh))
	}
}

func testAccount() account.Account {
	return account.Account{
		ID:           testMemberID,
		Name:         testMemberName,
		Provider:     provider.Kakao,
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
	}
}

func TestBootstrap_NoStoredCredential(t *testing.T) {
	f := setupTestFixture(t)

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)
	require.Zero(t, f.backend.TotalCalls(), "no backend calls expected")
	require.Zero(t, f.kakao.ValidateCalls)
	require.Zero(t, f.apple.ValidateCalls)
	require.Nil(t, f.controller.Account())
}

func TestBootstrap_ProviderSessionInvalid(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, testAccessToken, testRefreshToken)
	f.kakao.ValidateErr = provider.ErrInvalidSession

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)

	_, ok, err := f.tokens.Get(context.Background(), provider.Kakao, tokens.ProviderAccess)
	require.NoError(t, err)
	require.False(t, ok, "provider tokens should be cleared")
	_, ok, err = f.tokens.Get(context.Background(), provider.Kakao, tokens.BackendAccess)
	require.NoError(t, err)
	require.False(t, ok, "backend tokens should be cleared")
}

func TestBootstrap_ProviderTransportErrorSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, testAccessToken, testRefreshToken)
	f.kakao.ValidateErr = errors.Wrap(provider.ErrTransport, "dial tcp: timeout")

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)
	require.Zero(t, f.backend.TotalCalls(), "ambiguous provider failure must not reach the backend")
}

func TestBootstrap_AccessTokenPresent_ConsentAgreed(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, testAccessToken, testRefreshToken)
	require.NoError(t, f.consent.SetAgreed(context.Background(), provider.Kakao))

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)
	require.Zero(t, f.backend.RefreshCalls, "refresh must not run when an access token is stored")

	acct := f.controller.Account()
	require.NotNil(t, acct)
	require.Equal(t, provider.Kakao, acct.Provider)
	require.Equal(t, testAccessToken, acct.AccessToken)
}

func TestBootstrap_AccessTokenPresent_ConsentMissing(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, testAccessToken, "")

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseNeedsConsent, phase)
}

func TestBootstrap_NoRefreshTokenSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, "", "")

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)
	require.Zero(t, f.backend.RefreshCalls)
}

func TestBootstrap_RefreshSuccessPersistsAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, "", testRefreshToken)
	require.NoError(t, f.consent.SetAgreed(context.Background(), provider.Kakao))
	f.backend.RefreshFunc = func(refreshToken string) (string, error) {
		require.Equal(t, testRefreshToken, refreshToken)
		return "fresh-access-token", nil
	}

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)

	stored, ok, err := f.tokens.Get(context.Background(), provider.Kakao, tokens.BackendAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh-access-token", stored)
}

func TestBootstrap_ExpiredJWTAccessTokenGoesThroughRefresh(t *testing.T) {
	f := setupTestFixture(t)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	f.storeKakaoCredential(t, expired, testRefreshToken)
	require.NoError(t, f.consent.SetAgreed(context.Background(), provider.Kakao))
	f.backend.RefreshFunc = func(string) (string, error) {
		return "fresh-access-token", nil
	}

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)
	require.Equal(t, 1, f.backend.RefreshCalls, "a provably dead token is not presented")

	stored, ok, err := f.tokens.Get(context.Background(), provider.Kakao, tokens.BackendAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh-access-token", stored)
}

func TestBootstrap_RefreshExpiredSignsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, "", testRefreshToken)
	f.backend.RefreshFunc = func(string) (string, error) {
		return "", errors.Wrap(backend.ErrRefreshExpired, "backend says no")
	}

	phase, err := f.controller.Bootstrap(context.Background())

	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)

	_, ok, err := f.tokens.Get(context.Background(), provider.Kakao, tokens.ProviderAccess)
	require.NoError(t, err)
	require.False(t, ok, "all tokens cleared after expired refresh")

	// A second run must now behave exactly like the no-credential case.
	validations := f.kakao.ValidateCalls
	phase, err = f.controller.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.PhaseUnauthenticated, phase)
	require.Equal(t, validations, f.kakao.ValidateCalls, "no provider call on second run")
}

func TestBootstrap_AppleCheckedWhenOnlyAppleStored(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tokens.Set(ctx, provider.Apple, tokens.ProviderAccess, testAppleIdentity))
	require.NoError(t, f.tokens.Set(ctx, provider.Apple, tokens.BackendAccess, testAccessToken))
	require.NoError(t, f.consent.SetAgreed(ctx, provider.Apple))

	phase, err := f.controller.Bootstrap(ctx)

	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)
	require.Equal(t, 1, f.apple.ValidateCalls)
	require.Zero(t, f.kakao.ValidateCalls)
}

func TestBootstrap_KakaoPrecedesApple(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	// Both providers holding credentials should not happen, but when it
	// does the Kakao variant wins.
	require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.ProviderAccess, testKakaoToken))
	require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.BackendAccess, testAccessToken))
	require.NoError(t, f.tokens.Set(ctx, provider.Apple, tokens.ProviderAccess, testAppleIdentity))
	require.NoError(t, f.consent.SetAgreed(ctx, provider.Kakao))

	phase, err := f.controller.Bootstrap(ctx)

	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)
	require.Equal(t, 1, f.kakao.ValidateCalls)
	require.Zero(t, f.apple.ValidateCalls)
}

func TestBootstrap_SecondCallWhileInFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, testAccessToken, "")
	f.kakao.ValidateStarted = make(chan struct{})
	f.kakao.ValidateGate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.controller.Bootstrap(context.Background())
		require.NoError(t, err)
	}()

	<-f.kakao.ValidateStarted
	_, err := f.controller.Bootstrap(context.Background())
	require.ErrorIs(t, err, session.ErrBootstrapInFlight)

	close(f.kakao.ValidateGate)
	<-done
}

func TestLogout_DuringPendingReconciliationSupersedesIt(t *testing.T) {
	f := setupTestFixture(t)
	f.storeKakaoCredential(t, "", testRefreshToken)
	f.backend.RefreshStarted = make(chan struct{})
	f.backend.RefreshGate = make(chan struct{})
	f.backend.RefreshFunc = func(string) (string, error) {
		return "resurrected-access-token", nil
	}

	result := make(chan error, 1)
	go func() {
		_, err := f.controller.Bootstrap(context.Background())
		result <- err
	}()

	<-f.backend.RefreshStarted
	require.NoError(t, f.controller.Logout(context.Background()))
	close(f.backend.RefreshGate)

	require.ErrorIs(t, <-result, session.ErrSuperseded)
	require.Equal(t, session.PhaseUnauthenticated, f.controller.Phase())
	require.Nil(t, f.controller.Account())

	_, ok, err := f.tokens.Get(context.Background(), provider.Kakao, tokens.BackendAccess)
	require.NoError(t, err)
	require.False(t, ok, "discarded refresh result must not be persisted")
}

func TestCompleteLogin_ConsentDecidesPhase(t *testing.T) {
	f := setupTestFixture(t)

	phase, err := f.controller.CompleteLogin(context.Background(), testAccount())
	require.NoError(t, err)
	require.Equal(t, session.PhaseNeedsConsent, phase)

	require.NoError(t, f.controller.Logout(context.Background()))
	require.NoError(t, f.consent.SetAgreed(context.Background(), provider.Kakao))

	phase, err = f.controller.CompleteLogin(context.Background(), testAccount())
	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase, "consent fast path skips straight to steady state")
}

func TestCompleteLogin_PersistsTokensAndClearsOtherProvider(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tokens.Set(ctx, provider.Apple, tokens.ProviderAccess, testAppleIdentity))

	_, err := f.controller.CompleteLogin(ctx, testAccount())
	require.NoError(t, err)

	access, ok, err := f.tokens.Get(ctx, provider.Kakao, tokens.BackendAccess)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAccessToken, access)

	_, ok, err = f.tokens.Get(ctx, provider.Apple, tokens.ProviderAccess)
	require.NoError(t, err)
	require.False(t, ok, "the other provider's tokens are cleared on login")
}

func TestCompleteLogin_ThenBootstrapReproducesSteadyState(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.consent.SetAgreed(ctx, provider.Kakao))
	// The login flow stores the provider credential before CompleteLogin.
	require.NoError(t, f.tokens.Set(ctx, provider.Kakao, tokens.ProviderAccess, testKakaoToken))

	phase, err := f.controller.CompleteLogin(ctx, testAccount())
	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)

	// Simulate a restart: fresh controller over the same durable stores.
	restarted, err := session.NewController(session.Deps{
		Tokens:  f.tokens,
		Consent: f.consent,
		Providers: map[provider.Variant]provider.Gateway{
			provider.Kakao: f.kakao,
			provider.Apple: f.apple,
		},
		Backend: f.backend,
	})
	require.NoError(t, err)

	phase, err = restarted.Bootstrap(ctx)
	require.NoError(t, err)
	require.Equal(t, session.PhaseSteadyState, phase)
	require.Zero(t, f.backend.TotalCalls(), "stored access token is reused, not re-exchanged")
}

func TestConsentAndOnboardingWalk(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	sub := f.controller.Subscribe()
	defer f.controller.Unsubscribe(sub)

	_, err := f.controller.CompleteLogin(ctx, testAccount())
	require.NoError(t, err)
	require.NoError(t, f.controller.CompleteConsent(ctx))
	require.NoError(t, f.controller.CompleteOnboardingImport(ctx))
	require.NoError(t, f.controller.CompleteOnboardingFrequency(ctx))

	agreed, err := f.consent.IsAgreed(ctx, provider.Kakao)
	require.NoError(t, err)
	require.True(t, agreed)

	want := []session.Phase{
		session.PhaseNeedsConsent,
		session.PhaseNeedsOnboardingImport,
		session.PhaseNeedsOnboardingFrequency,
		session.PhaseSteadyState,
	}
	for _, expected := range want {
		require.Equal(t, expected, <-sub.C(), "phase transitions arrive in order")
	}
}

func TestOnboarding_InvalidTransitions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.controller.CompleteConsent(ctx), session.ErrNoAccount)
	require.ErrorIs(t, f.controller.CompleteOnboardingImport(ctx), session.ErrNoAccount)

	_, err := f.controller.CompleteLogin(ctx, testAccount())
	require.NoError(t, err)

	// Still in NeedsConsent; skipping ahead is rejected.
	require.ErrorIs(t, f.controller.CompleteOnboardingFrequency(ctx), session.ErrInvalidTransition)
}

func TestUnsubscribe_ReleasesStalledPublisher(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	sub := f.controller.Subscribe()

	// Fill the subscription buffer without draining: each login/logout
	// cycle publishes two transitions.
	for i := 0; i < 8; i++ {
		_, err := f.controller.CompleteLogin(ctx, testAccount())
		require.NoError(t, err)
		require.NoError(t, f.controller.Logout(ctx))
	}

	blocked := make(chan error, 1)
	go func() {
		_, err := f.controller.CompleteLogin(ctx, testAccount())
		blocked <- err
	}()

	// The publisher is wedged on the full buffer while holding the
	// controller mutex; unsubscribing must free it rather than deadlock.
	f.controller.Unsubscribe(sub)

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("controller still blocked after unsubscribe")
	}
}

func TestLogout_SafeFromAnyPhase(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.controller.Logout(ctx), "logout with no account is a no-op sign-out")
	require.Equal(t, session.PhaseUnauthenticated, f.controller.Phase())

	_, err := f.controller.CompleteLogin(ctx, testAccount())
	require.NoError(t, err)
	require.NoError(t, f.controller.Logout(ctx))
	require.Equal(t, session.PhaseUnauthenticated, f.controller.Phase())
	require.Nil(t, f.controller.Account())
}
