package gotrue

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	coachgate "github.com/vireohealth/coachgate"
)

// Config configures a provider client.
type Config struct {
	// BaseURL is the provider project URL, e.g. https://xyz.example.co
	BaseURL string

	// APIKey is the key this client presents. Anon key for request and
	// browser variants; service-role key for the server variant only.
	APIKey string

	// Spec names the session cookies mutations are written against.
	Spec coachgate.CookieSpec

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client

	// JWKSURL enables local validation of provider-issued access tokens.
	// Empty means tokens are confirmed with a /user round trip instead.
	JWKSURL string

	// Timeout bounds provider calls when HTTPClient is not supplied.
	Timeout time.Duration

	Logger coachgate.Logger
}

func (c Config) authURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/v1" + path
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("gotrue: base URL is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("gotrue: API key is required")
	}
	return nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// isServiceRoleKey inspects the key's role claim without verifying the
// signature; construction-time guarding only, never an authorization check.
func isServiceRoleKey(key string) bool {
	claims, err := coachgate.DecodeClaimsUnverified(key)
	if err != nil {
		return false
	}
	return claims.IsServiceRole()
}
