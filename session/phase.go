package session

// Phase is the application phase the presentation layer renders from.
// Exactly one value is current at any time; the Controller is the only
// writer. The forward path is
//
//	Unauthenticated → NeedsConsent → NeedsOnboardingImport →
//	NeedsOnboardingFrequency → SteadyState
//
// with Logout providing an edge from any phase back to Unauthenticated and
// CompleteLogin skipping straight to SteadyState when consent was already
// given for the provider.
type Phase string

const (
	PhaseUnauthenticated          Phase = "unauthenticated"
	PhaseNeedsConsent             Phase = "needs_consent"
	PhaseNeedsOnboardingImport    Phase = "needs_onboarding_import"
	PhaseNeedsOnboardingFrequency Phase = "needs_onboarding_frequency"
	PhaseSteadyState              Phase = "steady_state"
)

func (p Phase) String() string { return string(p) }

// Authenticated reports whether an Account is present in this phase.
func (p Phase) Authenticated() bool {
	return p != PhaseUnauthenticated && p != ""
}
