package coachgate

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set carried by provider access tokens. The shape
// follows GoTrue-style tokens: subject is the identity id and role rides in a
// private claim.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// IsServiceRole reports whether the claims belong to a privileged key. Keys
// with this role must never be handed to client-facing code paths.
func (c *SessionClaims) IsServiceRole() bool {
	return c != nil && c.UserRole == "service_role"
}

// DecodeClaimsUnverified parses a JWT without signature verification. Used
// only to inspect key roles and expiry hints; authorization decisions always
// go through a verifying validator.
func DecodeClaimsUnverified(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
