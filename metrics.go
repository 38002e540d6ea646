package coachgate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	refreshOutcomeActive      = "active"
	refreshOutcomeInvalid     = "invalid"
	refreshOutcomeUnreachable = "unreachable"

	signupOutcomeSuccess          = "success"
	signupOutcomeIdentityError    = "identity_error"
	signupOutcomeProfileError     = "profile_error"
	signupOutcomeCompensationFail = "compensation_failure"
)

// Metrics holds the Prometheus instruments for the session and signup paths.
type Metrics struct {
	SessionRefreshes     *prometheus.CounterVec
	SignupOutcomes       *prometheus.CounterVec
	OrphanedIdentities   prometheus.Counter
	GuardRedirects       prometheus.Counter
	FeedEventsDispatched prometheus.Counter
}

// NewMetrics creates and registers all instruments on the given registerer.
// Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coachgate_session_refreshes_total",
			Help: "Session refresh attempts by outcome",
		}, []string{"outcome"}),
		SignupOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coachgate_signups_total",
			Help: "Signup saga terminal outcomes",
		}, []string{"outcome"}),
		OrphanedIdentities: factory.NewCounter(prometheus.CounterOpts{
			Name: "coachgate_orphaned_identities_total",
			Help: "Identities left without a profile after failed compensation",
		}),
		GuardRedirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "coachgate_guard_redirects_total",
			Help: "Requests redirected to the login path by the route guard",
		}),
		FeedEventsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "coachgate_feed_events_dispatched_total",
			Help: "Change feed events dispatched to subscribers",
		}),
	}
}

func (s *Synchronizer) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SessionRefreshes.WithLabelValues(outcome).Inc()
	}
}

// OrphanedIdentity describes the state left behind when compensation fails:
// an identity exists with no matching profile row.
type OrphanedIdentity struct {
	IdentityID      string
	Email           string
	ProfileErr      error
	CompensationErr error
	OccurredAt      time.Time
}

// ReconciliationSink receives orphaned-identity reports for out-of-band
// cleanup. Whether cleanup is manual or automated is the caller's policy;
// this package only guarantees the signal is emitted.
type ReconciliationSink interface {
	Report(ctx context.Context, orphan OrphanedIdentity)
}

type logReconciliationSink struct {
	logger Logger
}

func (s logReconciliationSink) Report(_ context.Context, orphan OrphanedIdentity) {
	s.logger.Error(
		"RECONCILE: orphaned identity requires operator action",
		"identity_id", orphan.IdentityID,
		"email", orphan.Email,
		"profile_error", orphan.ProfileErr,
		"compensation_error", orphan.CompensationErr,
	)
}
