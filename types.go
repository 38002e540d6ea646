package coachgate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityRecord is the identity-provider owned account record. The profile
// row carries the same ID as a foreign reference, never an independent key.
type IdentityRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UUID parses the record ID.
func (r IdentityRecord) UUID() (uuid.UUID, error) {
	return uuid.Parse(r.ID)
}

// SessionCookies is the transport-level cookie material a request carries.
type SessionCookies struct {
	AccessToken  string
	RefreshToken string
}

func (c SessionCookies) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// IdentityGateway is the contract to the external identity provider. An
// expired or absent session is the normal logged-out path and is reported
// with ErrSessionInvalid, never as a transport failure.
type IdentityGateway interface {
	// RefreshSession validates the incoming cookie material, refreshing the
	// token pair when needed. Returned mutations must be applied to the
	// outgoing response by the caller.
	RefreshSession(ctx context.Context, cookies SessionCookies) (*SessionObject, MutationLog, error)

	// Authenticate performs a password sign-in and returns the new session
	// plus the cookie mutations that persist it.
	Authenticate(ctx context.Context, email, password string) (*SessionObject, MutationLog, error)

	CreateIdentity(ctx context.Context, email, password string) (*IdentityRecord, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// SessionRevoker is implemented by gateways that support sign-out.
type SessionRevoker interface {
	RevokeSession(ctx context.Context, cookies SessionCookies) (MutationLog, error)
}

// ProfileStore is the contract to the record store that owns profile rows.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *Profile) error
}

// Config holds the provider and cookie options consumed across the package.
type Config interface {
	GetProviderURL() string
	GetAnonKey() string
	GetServiceKey() string
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetCookiePath() string
	GetCookieSecure() bool
	GetLoginPath() string
	GetProtectedPrefixes() []string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] COACHGATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] COACHGATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] COACHGATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] COACHGATE "+newline(format), args...)
}

func newline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
