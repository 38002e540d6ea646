package coachgate_test

import (
	"context"
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	coachgate "github.com/vireohealth/coachgate"
)

// MockLogger implements coachgate.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// silentLogger drops everything; used where log output is not under test.
type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

// MockGateway implements coachgate.IdentityGateway and
// coachgate.SessionRevoker for testing
type MockGateway struct {
	mock.Mock
}

var _ coachgate.IdentityGateway = (*MockGateway)(nil)
var _ coachgate.SessionRevoker = (*MockGateway)(nil)

func (m *MockGateway) RefreshSession(ctx context.Context, cookies coachgate.SessionCookies) (*coachgate.SessionObject, coachgate.MutationLog, error) {
	args := m.Called(ctx, cookies)

	var session *coachgate.SessionObject
	if v := args.Get(0); v != nil {
		session = v.(*coachgate.SessionObject)
	}

	var mutations coachgate.MutationLog
	if v := args.Get(1); v != nil {
		mutations = v.(coachgate.MutationLog)
	}

	return session, mutations, args.Error(2)
}

func (m *MockGateway) Authenticate(ctx context.Context, email, password string) (*coachgate.SessionObject, coachgate.MutationLog, error) {
	args := m.Called(ctx, email, password)

	var session *coachgate.SessionObject
	if v := args.Get(0); v != nil {
		session = v.(*coachgate.SessionObject)
	}

	var mutations coachgate.MutationLog
	if v := args.Get(1); v != nil {
		mutations = v.(coachgate.MutationLog)
	}

	return session, mutations, args.Error(2)
}

func (m *MockGateway) CreateIdentity(ctx context.Context, email, password string) (*coachgate.IdentityRecord, error) {
	args := m.Called(ctx, email, password)

	var record *coachgate.IdentityRecord
	if v := args.Get(0); v != nil {
		record = v.(*coachgate.IdentityRecord)
	}

	return record, args.Error(1)
}

func (m *MockGateway) DeleteIdentity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) RevokeSession(ctx context.Context, cookies coachgate.SessionCookies) (coachgate.MutationLog, error) {
	args := m.Called(ctx, cookies)

	var mutations coachgate.MutationLog
	if v := args.Get(0); v != nil {
		mutations = v.(coachgate.MutationLog)
	}

	return mutations, args.Error(1)
}

// MockProfileStore implements coachgate.ProfileStore for testing
type MockProfileStore struct {
	mock.Mock
}

var _ coachgate.ProfileStore = (*MockProfileStore)(nil)

func (m *MockProfileStore) CreateProfile(ctx context.Context, profile *coachgate.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockReconciliationSink records orphaned-identity reports for testing
type MockReconciliationSink struct {
	mock.Mock
}

var _ coachgate.ReconciliationSink = (*MockReconciliationSink)(nil)

func (m *MockReconciliationSink) Report(ctx context.Context, orphan coachgate.OrphanedIdentity) {
	m.Called(ctx, orphan)
}

// fakeRequestContext is a hand-rolled coachgate.RequestContext that records
// everything the middleware does to the response.
type fakeRequestContext struct {
	ctx     context.Context
	path    string
	method  string
	cookies map[string]string

	written      []*router.Cookie
	redirectedTo string
	redirectCode int
	nextCalled   bool
	locals       map[any]any
}

var _ coachgate.RequestContext = (*fakeRequestContext)(nil)

func newFakeRequestContext(method, path string) *fakeRequestContext {
	return &fakeRequestContext{
		ctx:     context.Background(),
		path:    path,
		method:  method,
		cookies: map[string]string{},
		locals:  map[any]any{},
	}
}

func (c *fakeRequestContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *fakeRequestContext) Cookie(cookie *router.Cookie) {
	c.written = append(c.written, cookie)
}

func (c *fakeRequestContext) Context() context.Context {
	return c.ctx
}

func (c *fakeRequestContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *fakeRequestContext) Path() string {
	return c.path
}

func (c *fakeRequestContext) Method() string {
	return c.method
}

func (c *fakeRequestContext) Next() error {
	c.nextCalled = true
	return nil
}

func (c *fakeRequestContext) Redirect(path string, status ...int) error {
	c.redirectedTo = path
	c.redirectCode = http.StatusFound
	if len(status) > 0 {
		c.redirectCode = status[0]
	}
	return nil
}

func (c *fakeRequestContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}
