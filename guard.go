package coachgate

import (
	"strings"
)

// Decision is a route guard verdict.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Guard decides whether a request may proceed based on the synchronized
// session and a static table of protected path prefixes. It must run strictly
// after the Synchronizer, and any redirect it produces must still carry the
// refresh step's cookie mutations.
type Guard struct {
	prefixes  []string
	loginPath string
	logger    Logger
}

// NewRouteGuard builds a guard for the given login path and protected
// prefixes. Matching is a plain prefix match against the request path.
func NewRouteGuard(loginPath string, prefixes ...string) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Guard{
		prefixes:  prefixes,
		loginPath: loginPath,
		logger:    defLogger{},
	}
}

// GuardFromConfig builds a guard from package configuration.
func GuardFromConfig(cfg Config) *Guard {
	return NewRouteGuard(cfg.GetLoginPath(), cfg.GetProtectedPrefixes()...)
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// LoginPath returns the redirect target for rejected requests.
func (g *Guard) LoginPath() string {
	return g.loginPath
}

// Protected reports whether the path matches any protected prefix.
func (g *Guard) Protected(path string) bool {
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decide allows any request with a present session, and any request to an
// unprotected path. A protected path with an absent session redirects to the
// login path.
func (g *Guard) Decide(path string, session *SessionObject) Decision {
	if session != nil {
		return Decision{Allow: true}
	}

	if !g.Protected(path) {
		return Decision{Allow: true}
	}

	g.logger.Debug("route guard: redirecting unauthenticated request", "path", path)
	return Decision{Allow: false, RedirectTo: g.loginPath}
}
