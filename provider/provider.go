package provider

import "errors"

// Variant identifies a third-party identity provider the app can sign in with.
type Variant string

const (
	Kakao Variant = "kakao"
	Apple Variant = "apple"
)

// Variants returns every supported variant in reconciliation scan order.
// Kakao is deliberately first: when tokens for both providers are present
// (which login flows prevent, but stored state can drift) Kakao wins.
func Variants() []Variant {
	return []Variant{Kakao, Apple}
}

// IsValid reports whether v names a supported provider.
func (v Variant) IsValid() bool {
	switch v {
	case Kakao, Apple:
		return true
	}
	return false
}

func (v Variant) String() string { return string(v) }

// Credential is the material a completed provider login hands back.
// Proof is the provider-issued assertion the backend verifies during the
// credential exchange: the access token itself for Kakao, the identity
// token for Apple.
type Credential struct {
	AccessToken  string
	RefreshToken string // empty for providers that issue none (Apple)
	Proof        Proof
}

// Proof carries the identity assertion fields the backend exchange needs.
type Proof struct {
	UserID            string // provider-side subject, where the provider exposes one
	IdentityToken     string
	AuthorizationCode string // Apple only
}

var (
	// ErrInvalidSession means the provider rejected the stored credential.
	ErrInvalidSession = errors.New("provider session invalid")
	// ErrTransport means the provider could not be reached or answered
	// with a non-auth failure. Callers decide whether to treat it as fatal.
	ErrTransport = errors.New("provider transport failure")
	// ErrCancelled means the user abandoned the provider's login UI.
	ErrCancelled = errors.New("login cancelled by user")
	// ErrRejected means the provider refused to authenticate the user.
	ErrRejected = errors.New("provider rejected login")
)
