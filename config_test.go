package coachgate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coachgate "github.com/vireohealth/coachgate"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("reads provider settings from the environment", func(t *testing.T) {
		t.Setenv("COACHGATE_PROVIDER_URL", "https://project.example.co")
		t.Setenv("COACHGATE_ANON_KEY", "anon-key")
		t.Setenv("COACHGATE_SERVICE_KEY", "service-key")
		t.Setenv("COACHGATE_ACCESS_COOKIE", "my-access")
		t.Setenv("COACHGATE_REFRESH_COOKIE", "my-refresh")
		t.Setenv("COACHGATE_COOKIE_SECURE", "false")
		t.Setenv("COACHGATE_LOGIN_PATH", "/sign-in")
		t.Setenv("COACHGATE_PROTECTED_PREFIXES", "/dashboard, /account ,")

		cfg := coachgate.LoadConfigFromEnv()

		assert.NoError(t, cfg.Validate())
		assert.Equal(t, "https://project.example.co", cfg.GetProviderURL())
		assert.Equal(t, "anon-key", cfg.GetAnonKey())
		assert.Equal(t, "service-key", cfg.GetServiceKey())
		assert.Equal(t, "my-access", cfg.GetAccessCookieName())
		assert.Equal(t, "my-refresh", cfg.GetRefreshCookieName())
		assert.False(t, cfg.GetCookieSecure())
		assert.Equal(t, "/sign-in", cfg.GetLoginPath())
		assert.Equal(t, []string{"/dashboard", "/account"}, cfg.GetProtectedPrefixes())
	})

	t.Run("fills defaults for missing cookie settings", func(t *testing.T) {
		t.Setenv("COACHGATE_PROVIDER_URL", "https://project.example.co")
		t.Setenv("COACHGATE_ANON_KEY", "anon-key")
		t.Setenv("COACHGATE_ACCESS_COOKIE", "")
		t.Setenv("COACHGATE_REFRESH_COOKIE", "")
		t.Setenv("COACHGATE_COOKIE_PATH", "")
		t.Setenv("COACHGATE_LOGIN_PATH", "")
		t.Setenv("COACHGATE_COOKIE_SECURE", "")
		t.Setenv("COACHGATE_PROTECTED_PREFIXES", "")

		cfg := coachgate.LoadConfigFromEnv()
		spec := coachgate.DefaultCookieSpec()

		assert.Equal(t, spec.AccessName, cfg.GetAccessCookieName())
		assert.Equal(t, spec.RefreshName, cfg.GetRefreshCookieName())
		assert.Equal(t, spec.Path, cfg.GetCookiePath())
		assert.True(t, cfg.GetCookieSecure())
		assert.Equal(t, "/login", cfg.GetLoginPath())
		assert.Empty(t, cfg.GetProtectedPrefixes())
	})
}

func TestEnvConfig_Validate(t *testing.T) {
	t.Run("requires a provider URL", func(t *testing.T) {
		cfg := &coachgate.EnvConfig{AnonKey: "anon", LoginPath: "/login"}

		assert.Error(t, cfg.Validate())
	})

	t.Run("requires the anon key", func(t *testing.T) {
		cfg := &coachgate.EnvConfig{ProviderURL: "https://project.example.co", LoginPath: "/login"}

		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects a malformed provider URL", func(t *testing.T) {
		cfg := &coachgate.EnvConfig{ProviderURL: "::not-a-url::", AnonKey: "anon", LoginPath: "/login"}

		assert.Error(t, cfg.Validate())
	})
}
