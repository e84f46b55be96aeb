package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether a bearer token's expiry claim is in the past.
// The token is decoded without signature verification; the client holds no
// key material and only needs the exp claim. Any decode failure counts as
// expired (fail closed). A token that decodes but carries no expiry claim is
// treated as still valid, matching how the backend issues session tokens.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if expiry == nil {
		return false
	}

	return !now.Before(expiry.Time)
}
