package coachgate

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// SignupMessage is the signup input. It is consumed by the saga and not
// retained anywhere.
type SignupMessage struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Phone    string `form:"phone_number" json:"phone_number"`
	Role     string `form:"role" json:"role"`
}

func (m SignupMessage) Type() string { return "account.signup" }

// Validate will run validation rules
func (m SignupMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&m.Phone, validation.Length(10, 11), is.Digit),
	)
}

// SignupHandler orchestrates account creation across two stores that are not
// transactionally joined: the identity provider and the profile store. The
// identity is created first, then the profile keyed by the identity id. When
// the profile write fails we attempt exactly one compensating delete of the
// identity; if that also fails the system is left with an orphaned identity
// and the condition is surfaced as a distinct CompensationError so an
// operator or reconciliation job can act.
type SignupHandler struct {
	gateway  IdentityGateway
	profiles ProfileStore
	logger   Logger
	metrics  *Metrics
	recon    ReconciliationSink
}

// NewSignupHandler wires the saga over the given gateway and profile store.
func NewSignupHandler(gateway IdentityGateway, profiles ProfileStore, opts ...SignupOption) *SignupHandler {
	h := &SignupHandler{
		gateway:  gateway,
		profiles: profiles,
		logger:   defLogger{},
	}
	h.recon = logReconciliationSink{logger: h.logger}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type SignupOption func(*SignupHandler)

func SignupWithLogger(logger Logger) SignupOption {
	return func(h *SignupHandler) {
		if logger != nil {
			h.logger = logger
			if _, ok := h.recon.(logReconciliationSink); ok {
				h.recon = logReconciliationSink{logger: logger}
			}
		}
	}
}

func SignupWithMetrics(m *Metrics) SignupOption {
	return func(h *SignupHandler) {
		h.metrics = m
	}
}

// SignupWithReconciliationSink overrides where orphaned-identity reports go.
func SignupWithReconciliationSink(sink ReconciliationSink) SignupOption {
	return func(h *SignupHandler) {
		if sink != nil {
			h.recon = sink
		}
	}
}

// Execute runs the saga strictly sequentially. The profile write never starts
// before the identity exists, and compensation only runs after the profile
// write has definitively failed.
func (h *SignupHandler) Execute(ctx context.Context, msg SignupMessage) (*IdentityRecord, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SignupHandler) execute(ctx context.Context, msg SignupMessage) (*IdentityRecord, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload")
	}

	identity, err := h.gateway.CreateIdentity(ctx, msg.Email, msg.Password)
	if err != nil {
		h.logger.Error("signup: identity creation rejected", "email", msg.Email, "error", err)
		h.count(signupOutcomeIdentityError)
		return nil, WrapIdentityCreation(err)
	}

	profile := &Profile{
		Email: identity.Email,
		Role:  normalizeRole(msg.Role),
		Phone: msg.Phone,
	}
	if id, err := identity.UUID(); err == nil {
		profile.ID = id
	}

	if err := h.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, h.compensate(ctx, identity, err)
	}

	h.count(signupOutcomeSuccess)
	return identity, nil
}

// compensate attempts exactly one identity delete to undo step one.
func (h *SignupHandler) compensate(ctx context.Context, identity *IdentityRecord, profileErr error) error {
	h.logger.Warn("signup: profile creation failed, compensating", "identity_id", identity.ID, "error", profileErr)

	if err := h.gateway.DeleteIdentity(ctx, identity.ID); err != nil {
		h.count(signupOutcomeCompensationFail)
		if h.metrics != nil {
			h.metrics.OrphanedIdentities.Inc()
		}

		ce := &CompensationError{
			IdentityID:      identity.ID,
			Email:           identity.Email,
			ProfileErr:      profileErr,
			CompensationErr: err,
		}
		h.recon.Report(ctx, OrphanedIdentity{
			IdentityID:      identity.ID,
			Email:           identity.Email,
			ProfileErr:      profileErr,
			CompensationErr: err,
			OccurredAt:      time.Now(),
		})
		return ce
	}

	h.count(signupOutcomeProfileError)
	return WrapProfileCreation(profileErr)
}

func (h *SignupHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.SignupOutcomes.WithLabelValues(outcome).Inc()
	}
}
