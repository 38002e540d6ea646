package coachgate

import (
	"context"
)

// Synchronizer runs once per request, before any routing decision. It asks
// the identity gateway to validate or refresh the caller's session and
// captures every cookie mutation the refresh wants to apply. It never writes
// to the response itself; the captured log travels with the request until a
// final response exists.
type Synchronizer struct {
	gateway IdentityGateway
	logger  Logger
	metrics *Metrics
}

// NewSynchronizer wires a synchronizer over the given gateway.
func NewSynchronizer(gateway IdentityGateway, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		gateway: gateway,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type SynchronizerOption func(*Synchronizer)

func SynchronizerWithLogger(logger Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func SynchronizerWithMetrics(m *Metrics) SynchronizerOption {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// Refresh resolves the caller's session from cookie material. A nil session
// means unauthenticated; that is not an error. Transport failures against the
// provider are logged and degrade to the unauthenticated path with an empty
// mutation set, so a provider blip does not wipe the caller's cookies.
func (s *Synchronizer) Refresh(ctx context.Context, cookies SessionCookies) (*SessionObject, MutationLog) {
	session, mutations, err := s.gateway.RefreshSession(ctx, cookies)
	if err == nil {
		s.count(refreshOutcomeActive)
		return session, mutations
	}

	if IsSessionInvalid(err) {
		s.logger.Debug("session refresh: logged-out path", "error", err)
		s.count(refreshOutcomeInvalid)
		return nil, mutations
	}

	s.logger.Warn("session refresh: provider unreachable, treating as unauthenticated", "error", err)
	s.count(refreshOutcomeUnreachable)
	return nil, nil
}
