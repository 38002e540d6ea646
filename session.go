package coachgate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionObject is the per-request view of an authenticated caller. It is
// rebuilt from transport cookies on every request and never persisted
// server-side beyond the request lifetime.
type SessionObject struct {
	UserID       string     `json:"user_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role,omitempty"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetEmail() string {
	return s.Email
}

func (s *SessionObject) GetRole() string {
	return s.Role
}

// Expired reports whether the access token lifetime has elapsed. Sessions
// without an expiry are treated as expired so they always go through a
// provider refresh.
func (s *SessionObject) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return true
	}
	return !now.Before(*s.ExpiresAt)
}

// Identity derives the gateway-owned record view of the session holder.
func (s *SessionObject) Identity() *IdentityRecord {
	if s == nil || s.UserID == "" {
		return nil
	}
	return &IdentityRecord{ID: s.UserID, Email: s.Email}
}

func (s SessionObject) String() string {
	expires := "<nil>"
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%s email=%s role=%s exp=%s", s.UserID, s.Email, s.Role, expires)
}

// SessionFromClaims builds a session from validated token claims. Token
// material is attached by the gateway, which owns the raw strings.
func SessionFromClaims(claims *SessionClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToFindSession
	}

	session := &SessionObject{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.UserRole,
	}

	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		session.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		session.ExpiresAt = &t
	}

	return session, nil
}
