package coachgate

import (
	"time"

	"github.com/goliatone/go-router"
)

// CookieMutation is one change the session refresh wants applied to the
// outgoing response. Mutations are captured as values and applied by whoever
// produces the final response, redirects included.
type CookieMutation struct {
	Name     string
	Value    string
	Path     string
	Expires  time.Time
	MaxAge   int
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// MutationLog is the ordered set of cookie mutations produced during a
// request. Apply order is production order, last write wins per cookie name.
type MutationLog []CookieMutation

// CookieWriter is the slice of router.Context the log needs to flush itself.
type CookieWriter interface {
	Cookie(cookie *router.Cookie)
}

// Set appends a value-bearing mutation.
func (m MutationLog) Set(c CookieMutation) MutationLog {
	return append(m, c)
}

// Clear appends a mutation that expires the named cookie on the client.
func (m MutationLog) Clear(name, path string, secure bool) MutationLog {
	return append(m, CookieMutation{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}

// Compact collapses the log to one mutation per cookie name, keeping the last
// write and its position relative to the surviving entries.
func (m MutationLog) Compact() MutationLog {
	if len(m) < 2 {
		return m
	}

	last := make(map[string]int, len(m))
	for i, c := range m {
		last[c.Name] = i
	}

	out := make(MutationLog, 0, len(last))
	for i, c := range m {
		if last[c.Name] == i {
			out = append(out, c)
		}
	}
	return out
}

// ApplyTo flushes the compacted log onto the response. Callers must invoke
// this before returning any response for the request, including guard
// redirects; skipping it silently desynchronizes client and server session
// state on the next request.
func (m MutationLog) ApplyTo(w CookieWriter) {
	for _, c := range m.Compact() {
		w.Cookie(&router.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expires:  c.Expires,
			MaxAge:   c.MaxAge,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
}

// CookieSpec names the session cookies and the attributes mutations carry.
type CookieSpec struct {
	AccessName  string
	RefreshName string
	Path        string
	Secure      bool
	Duration    time.Duration
}

// DefaultCookieSpec mirrors the provider SDK defaults.
func DefaultCookieSpec() CookieSpec {
	return CookieSpec{
		AccessName:  "cg-access-token",
		RefreshName: "cg-refresh-token",
		Path:        "/",
		Secure:      true,
		Duration:    24 * time.Hour,
	}
}

// CookieSpecFromConfig builds a spec from package configuration.
func CookieSpecFromConfig(cfg Config) CookieSpec {
	spec := DefaultCookieSpec()
	if v := cfg.GetAccessCookieName(); v != "" {
		spec.AccessName = v
	}
	if v := cfg.GetRefreshCookieName(); v != "" {
		spec.RefreshName = v
	}
	if v := cfg.GetCookiePath(); v != "" {
		spec.Path = v
	}
	spec.Secure = cfg.GetCookieSecure()
	return spec
}

// SetPair records mutations that persist a refreshed token pair.
func (s CookieSpec) SetPair(m MutationLog, access, refresh string) MutationLog {
	expires := time.Now().Add(s.Duration)
	m = m.Set(CookieMutation{
		Name:     s.AccessName,
		Value:    access,
		Path:     s.Path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
	})
	return m.Set(CookieMutation{
		Name:     s.RefreshName,
		Value:    refresh,
		Path:     s.Path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
	})
}

// ClearPair records mutations that expire both session cookies.
func (s CookieSpec) ClearPair(m MutationLog) MutationLog {
	m = m.Clear(s.AccessName, s.Path, s.Secure)
	return m.Clear(s.RefreshName, s.Path, s.Secure)
}

// CookieReader is the slice of router.Context the spec reads from.
type CookieReader interface {
	Cookies(key string, defaultValue ...string) string
}

// ReadPair extracts the session cookie values from a request context.
func (s CookieSpec) ReadPair(c CookieReader) SessionCookies {
	return SessionCookies{
		AccessToken:  c.Cookies(s.AccessName),
		RefreshToken: c.Cookies(s.RefreshName),
	}
}
