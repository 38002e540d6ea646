package coachgate

import (
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// EnvConfig is the default Config implementation, loaded from environment
// variables. The service key is privileged: it bypasses row-level policies at
// the provider and must never reach a client-facing code path. Constructors
// in provider/gotrue enforce that boundary.
type EnvConfig struct {
	ProviderURL       string
	AnonKey           string
	ServiceKey        string
	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieSecure      bool
	LoginPath         string
	ProtectedPrefixes []string
}

var _ Config = (*EnvConfig)(nil)

// LoadConfigFromEnv reads provider settings from the environment.
func LoadConfigFromEnv() *EnvConfig {
	secure := true
	if v, err := strconv.ParseBool(os.Getenv("COACHGATE_COOKIE_SECURE")); err == nil {
		secure = v
	}

	cfg := &EnvConfig{
		ProviderURL:       os.Getenv("COACHGATE_PROVIDER_URL"),
		AnonKey:           os.Getenv("COACHGATE_ANON_KEY"),
		ServiceKey:        os.Getenv("COACHGATE_SERVICE_KEY"),
		AccessCookieName:  os.Getenv("COACHGATE_ACCESS_COOKIE"),
		RefreshCookieName: os.Getenv("COACHGATE_REFRESH_COOKIE"),
		CookiePath:        os.Getenv("COACHGATE_COOKIE_PATH"),
		CookieSecure:      secure,
		LoginPath:         os.Getenv("COACHGATE_LOGIN_PATH"),
	}

	if v := os.Getenv("COACHGATE_PROTECTED_PREFIXES"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ProtectedPrefixes = append(cfg.ProtectedPrefixes, p)
			}
		}
	}

	return cfg.withDefaults()
}

func (c *EnvConfig) withDefaults() *EnvConfig {
	spec := DefaultCookieSpec()
	if c.AccessCookieName == "" {
		c.AccessCookieName = spec.AccessName
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = spec.RefreshName
	}
	if c.CookiePath == "" {
		c.CookiePath = spec.Path
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	return c
}

// Validate will run validation rules
func (c EnvConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ProviderURL, validation.Required, is.URL),
		validation.Field(&c.AnonKey, validation.Required),
		validation.Field(&c.LoginPath, validation.Required),
	)
}

func (c *EnvConfig) GetProviderURL() string         { return c.ProviderURL }
func (c *EnvConfig) GetAnonKey() string             { return c.AnonKey }
func (c *EnvConfig) GetServiceKey() string          { return c.ServiceKey }
func (c *EnvConfig) GetAccessCookieName() string    { return c.AccessCookieName }
func (c *EnvConfig) GetRefreshCookieName() string   { return c.RefreshCookieName }
func (c *EnvConfig) GetCookiePath() string          { return c.CookiePath }
func (c *EnvConfig) GetCookieSecure() bool          { return c.CookieSecure }
func (c *EnvConfig) GetLoginPath() string           { return c.LoginPath }
func (c *EnvConfig) GetProtectedPrefixes() []string { return c.ProtectedPrefixes }
