package coachgate

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// DefaultSessionContextKey is where the middleware stores the synchronized
// session in router locals.
const DefaultSessionContextKey = "coachgate_session"

// RequestContext is the slice of router.Context the session middleware
// touches. Narrowing the surface keeps the middleware testable without a full
// router harness.
type RequestContext interface {
	CookieReader
	CookieWriter
	Context() context.Context
	SetContext(ctx context.Context)
	Path() string
	Method() string
	Next() error
	Redirect(path string, status ...int) error
	Locals(key any, value ...any) any
}

// SessionMiddleware runs the request-scoped session protocol: synchronize the
// session with the identity provider, capture the resulting cookie mutations,
// consult the route guard, and apply the mutations to whatever response the
// request produces. The mutation log is applied before the guard redirect is
// written so a rejected request still carries renewed or cleared cookies.
type SessionMiddleware struct {
	sync       *Synchronizer
	guard      *Guard
	spec       CookieSpec
	contextKey string
	logger     Logger
	metrics    *Metrics
}

// NewSessionMiddleware builds the middleware from package configuration and a
// gateway.
func NewSessionMiddleware(cfg Config, gateway IdentityGateway, opts ...MiddlewareOption) *SessionMiddleware {
	m := &SessionMiddleware{
		spec:       CookieSpecFromConfig(cfg),
		guard:      GuardFromConfig(cfg),
		contextKey: DefaultSessionContextKey,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.sync == nil {
		m.sync = NewSynchronizer(gateway,
			SynchronizerWithLogger(m.logger),
			SynchronizerWithMetrics(m.metrics),
		)
	}

	return m
}

type MiddlewareOption func(*SessionMiddleware)

func MiddlewareWithLogger(logger Logger) MiddlewareOption {
	return func(m *SessionMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func MiddlewareWithMetrics(metrics *Metrics) MiddlewareOption {
	return func(m *SessionMiddleware) {
		m.metrics = metrics
	}
}

func MiddlewareWithGuard(guard *Guard) MiddlewareOption {
	return func(m *SessionMiddleware) {
		if guard != nil {
			m.guard = guard
		}
	}
}

func MiddlewareWithSynchronizer(sync *Synchronizer) MiddlewareOption {
	return func(m *SessionMiddleware) {
		m.sync = sync
	}
}

func MiddlewareWithContextKey(key string) MiddlewareOption {
	return func(m *SessionMiddleware) {
		if key != "" {
			m.contextKey = key
		}
	}
}

// Middleware adapts Handle into a go-router middleware.
func (m *SessionMiddleware) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			return m.Handle(c)
		}
	}
}

// Handle executes the per-request protocol. Every cookie mutation captured by
// the refresh step is written onto the response before any routing decision
// resolves, guard redirects included.
func (m *SessionMiddleware) Handle(c RequestContext) error {
	cookies := m.spec.ReadPair(c)

	session, mutations := m.sync.Refresh(c.Context(), cookies)

	mutations.ApplyTo(c)

	if decision := m.guard.Decide(c.Path(), session); !decision.Allow {
		if m.metrics != nil {
			m.metrics.GuardRedirects.Inc()
		}

		statusCode := http.StatusSeeOther
		if c.Method() == string(router.GET) {
			statusCode = http.StatusFound
		}
		return c.Redirect(decision.RedirectTo, statusCode)
	}

	if session != nil {
		c.Locals(m.contextKey, session)
		c.SetContext(WithSessionContext(c.Context(), session))
	}

	return c.Next()
}

// GetRouterSession retrieves the synchronized session stored by the
// middleware, if any.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	if key == "" {
		key = DefaultSessionContextKey
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	session, ok := raw.(*SessionObject)
	if !ok {
		return nil, ErrUnableToFindSession
	}
	return session, nil
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	defLogger{}.Info(
		"HTTP error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(richErr.Code, map[string]any{
		"error": richErr.Message,
	})
}
