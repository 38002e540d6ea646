package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	coachgate "github.com/vireohealth/coachgate"
)

// Variant names how a client obtains and persists cookie context.
type Variant string

const (
	// VariantServer runs in trusted server-only contexts and may carry the
	// privileged service-role key.
	VariantServer Variant = "server"
	// VariantRequest serves one inbound request; cookie mutations are
	// returned as values for the caller to apply.
	VariantRequest Variant = "request"
	// VariantBrowser persists cookies on its own transport jar.
	VariantBrowser Variant = "browser"
)

// Client speaks the provider's REST auth protocol. The three variants share
// every operation and differ only in cookie context and key policy.
type Client struct {
	cfg        Config
	variant    Variant
	http       *http.Client
	validator  *TokenValidator
	privileged bool
	logger     coachgate.Logger
}

var _ coachgate.IdentityGateway = (*Client)(nil)
var _ coachgate.SessionRevoker = (*Client)(nil)

// NewServerClient builds the server-only variant. This is the only
// constructor allowed to carry a service-role key.
func NewServerClient(cfg Config) (*Client, error) {
	return newClient(cfg, VariantServer)
}

// NewRequestClient builds the per-request variant. It refuses privileged
// keys: a service-role key on a request-scoped client would leak it to
// client-facing code paths.
func NewRequestClient(cfg Config) (*Client, error) {
	if isServiceRoleKey(cfg.APIKey) {
		return nil, coachgate.ErrServiceKeyLeak
	}
	return newClient(cfg, VariantRequest)
}

// NewBrowserClient builds the cookie-jar variant used by long-lived client
// processes. It refuses privileged keys for the same reason as
// NewRequestClient.
func NewBrowserClient(cfg Config) (*Client, error) {
	if isServiceRoleKey(cfg.APIKey) {
		return nil, coachgate.ErrServiceKeyLeak
	}

	c, err := newClient(cfg, VariantBrowser)
	if err != nil {
		return nil, err
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("gotrue: cookie jar: %w", err)
		}
		// do not mutate a shared client
		httpCopy := *c.http
		httpCopy.Jar = jar
		c.http = &httpCopy
	}

	return c, nil
}

func newClient(cfg Config, variant Variant) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Spec.AccessName == "" {
		cfg.Spec = coachgate.DefaultCookieSpec()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		cfg:        cfg,
		variant:    variant,
		http:       cfg.httpClient(),
		privileged: isServiceRoleKey(cfg.APIKey),
		logger:     logger,
	}

	if cfg.JWKSURL != "" {
		validator, err := NewTokenValidator(cfg)
		if err != nil {
			return nil, err
		}
		c.validator = validator
	}

	return c, nil
}

// Variant reports how this client was constructed.
func (c *Client) Variant() Variant {
	return c.variant
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

type errorResponse struct {
	Message     string `json:"msg"`
	Description string `json:"error_description"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gotrue: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// sessionInvalid maps auth-surface client errors onto the logged-out path.
// Server errors and transport failures pass through untouched.
func sessionInvalid(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return fmt.Errorf("%w: %s", coachgate.ErrSessionInvalid, apiErr.Error())
	}
	return err
}

// RefreshSession validates the access token, refreshing the pair through the
// provider when it no longer verifies. Both tokens unusable is the normal
// logged-out path: ErrSessionInvalid plus clearing mutations.
func (c *Client) RefreshSession(ctx context.Context, cookies coachgate.SessionCookies) (*coachgate.SessionObject, coachgate.MutationLog, error) {
	if cookies.Empty() {
		return nil, nil, coachgate.ErrSessionInvalid
	}

	if cookies.AccessToken != "" {
		if session := c.sessionFromAccessToken(ctx, cookies); session != nil {
			return session, nil, nil
		}
	}

	if cookies.RefreshToken == "" {
		return nil, c.cfg.Spec.ClearPair(nil), coachgate.ErrSessionInvalid
	}

	body := map[string]string{"refresh_token": cookies.RefreshToken}
	var tokens tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &tokens); err != nil {
		err = sessionInvalid(err)
		if coachgate.IsSessionInvalid(err) {
			return nil, c.cfg.Spec.ClearPair(nil), err
		}
		return nil, nil, err
	}

	session := c.sessionFromTokens(tokens)
	return session, c.cfg.Spec.SetPair(nil, tokens.AccessToken, tokens.RefreshToken), nil
}

// Authenticate performs a password grant and returns the session plus the
// mutations that persist it.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*coachgate.SessionObject, coachgate.MutationLog, error) {
	body := map[string]string{"email": email, "password": password}
	var tokens tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &tokens); err != nil {
		return nil, nil, sessionInvalid(err)
	}

	session := c.sessionFromTokens(tokens)
	return session, c.cfg.Spec.SetPair(nil, tokens.AccessToken, tokens.RefreshToken), nil
}

// CreateIdentity registers a new identity. Privileged clients go through the
// admin surface so the account lands pre-confirmed; anon clients use the
// public signup endpoint.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (*coachgate.IdentityRecord, error) {
	path := "/signup"
	body := map[string]any{"email": email, "password": password}
	if c.privileged {
		path = "/admin/users"
		body["email_confirm"] = true
	}

	var user userResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &user); err != nil {
		return nil, err
	}

	return &coachgate.IdentityRecord{ID: user.ID, Email: user.Email}, nil
}

// DeleteIdentity removes an identity through the admin surface. Only the
// server variant carries a key the provider will accept here; the provider
// rejects anon keys with a 403 which callers see as an error, never a silent
// no-op.
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+id, "", nil, nil)
}

// RevokeSession invalidates the refresh token family server-side and clears
// the cookie pair.
func (c *Client) RevokeSession(ctx context.Context, cookies coachgate.SessionCookies) (coachgate.MutationLog, error) {
	mutations := c.cfg.Spec.ClearPair(nil)
	if cookies.AccessToken == "" {
		return mutations, nil
	}

	if err := c.do(ctx, http.MethodPost, "/logout", cookies.AccessToken, nil, nil); err != nil {
		// an already-dead token is fine, we are logging out anyway
		if !coachgate.IsSessionInvalid(sessionInvalid(err)) {
			return mutations, err
		}
	}
	return mutations, nil
}

// sessionFromAccessToken resolves a still-valid access token into a session,
// via JWKS when configured and a /user round trip otherwise. Returns nil when
// the token no longer verifies.
func (c *Client) sessionFromAccessToken(ctx context.Context, cookies coachgate.SessionCookies) *coachgate.SessionObject {
	if c.validator != nil {
		claims, err := c.validator.Validate(cookies.AccessToken)
		if err != nil {
			return nil
		}

		session, err := coachgate.SessionFromClaims(claims)
		if err != nil {
			return nil
		}
		session.AccessToken = cookies.AccessToken
		session.RefreshToken = cookies.RefreshToken
		return session
	}

	var user userResponse
	if err := c.do(ctx, http.MethodGet, "/user", cookies.AccessToken, nil, &user); err != nil {
		return nil
	}

	return &coachgate.SessionObject{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		AccessToken:  cookies.AccessToken,
		RefreshToken: cookies.RefreshToken,
	}
}

func (c *Client) sessionFromTokens(tokens tokenResponse) *coachgate.SessionObject {
	session := &coachgate.SessionObject{
		UserID:       tokens.User.ID,
		Email:        tokens.User.Email,
		Role:         tokens.User.Role,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}

	if tokens.ExpiresIn > 0 {
		expires := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		session.ExpiresAt = &expires
	}

	return session
}

// do runs one provider call. 4xx responses on auth surfaces are classified as
// ErrSessionInvalid; everything else is a transport failure.
func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gotrue: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.authURL(path), reader)
	if err != nil {
		return fmt.Errorf("gotrue: build request: %w", err)
	}

	req.Header.Set("apikey", c.cfg.APIKey)
	if bearer == "" {
		bearer = c.cfg.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		body := errorResponse{}
		_ = json.NewDecoder(res.Body).Decode(&body)
		msg := body.Message
		if msg == "" {
			msg = body.Description
		}
		return &APIError{Status: res.StatusCode, Message: msg, Method: method, Path: path}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
