package gotrue

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	coachgate "github.com/vireohealth/coachgate"
)

// TokenValidator validates provider-issued access tokens against the
// project's JWK set, avoiding a network round trip per request.
type TokenValidator struct {
	jwks   *keyfunc.JWKS
	logger coachgate.Logger
}

// NewTokenValidator fetches and caches the provider JWK set.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWK set", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gotrue: failed to get JWK set: %w", err)
	}

	return &TokenValidator{jwks: jwks, logger: logger}, nil
}

// Validate parses and verifies an access token. Expired or otherwise
// unverifiable tokens are reported as ErrSessionInvalid: the caller treats
// that as the logged-out path, not a failure.
func (v *TokenValidator) Validate(tokenString string) (*coachgate.SessionClaims, error) {
	claims := &coachgate.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coachgate.ErrSessionInvalid, err)
	}

	if !token.Valid {
		return nil, coachgate.ErrSessionInvalid
	}

	return claims, nil
}

// Close stops the JWK set's background refresh.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
