package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenLive reports whether a stored backend access token is worth
// presenting at all. The token is a JWT issued by the backend; the client
// cannot verify the signature (it has no key material) but it can read the
// exp claim and skip tokens that are already dead. Tokens that do not parse
// as JWTs, or carry no exp claim, are assumed live; the backend is the
// authority and will reject them if not.
func AccessTokenLive(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(now)
}
