package account

import "github.com/swypapp/sessionkit/provider"

// Account is the signed-in identity. Exactly one exists at a time; the
// session controller owns the current value and replaces it wholesale on
// re-login. An Account is present if and only if the application phase is
// not unauthenticated.
type Account struct {
	ID              string           // opaque backend member identifier
	Name            string           // display name from the backend profile
	ProfileImageURL *string          // optional
	Provider        provider.Variant // which provider signed this identity in
	AccessToken     string           // backend-issued access token
	RefreshToken    string           // backend-issued refresh token
}
