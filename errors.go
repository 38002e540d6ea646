package coachgate

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ErrSessionInvalid marks an absent, expired, or unverifiable session. It is
// the normal unauthenticated path, not a failure condition.
var ErrSessionInvalid = errors.New("session invalid")

// ErrProfileNotFound is the error we return for non found profiles
var ErrProfileNotFound = errors.New("profile not found")

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrServiceKeyLeak is returned when a privileged key reaches a client-facing
// construction path.
var ErrServiceKeyLeak = errors.New("service key must not be used outside server-only contexts")

// ErrNoEmptyString guards hash helpers against empty input
var ErrNoEmptyString = errors.New("string should not be empty")

// ErrMismatchedHashAndPassword mirrors bcrypt's mismatch error
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// Text codes carried by rich signup errors so callers and dashboards can
// distinguish the saga's terminal outcomes.
const (
	TextCodeIdentityCreateFailed = "IDENTITY_CREATE_FAILED"
	TextCodeProfileCreateFailed  = "PROFILE_CREATE_FAILED"
	TextCodeCompensationFailed   = "SIGNUP_COMPENSATION_FAILED"
)

// WrapIdentityCreation classifies step-one failures. There is nothing to
// compensate at that point.
func WrapIdentityCreation(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryConflict, "identity provider rejected signup").
		WithTextCode(TextCodeIdentityCreateFailed)
}

// WrapProfileCreation classifies step-two failures after a successful
// compensating delete. System state is consistent again.
func WrapProfileCreation(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "profile creation failed, identity rolled back").
		WithTextCode(TextCodeProfileCreateFailed)
}

// CompensationError reports that profile creation failed AND the compensating
// identity delete failed too: an orphaned identity now exists with no profile.
// It is fatal from the request's point of view and must reach an operator or
// reconciliation job, never a user-facing validation message.
type CompensationError struct {
	IdentityID      string
	Email           string
	ProfileErr      error
	CompensationErr error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf(
		"signup compensation failed for identity %s: profile error: %v; compensation error: %v",
		e.IdentityID, e.ProfileErr, e.CompensationErr,
	)
}

func (e *CompensationError) Unwrap() []error {
	return []error{e.ProfileErr, e.CompensationErr}
}

// IsCompensationFailure reports whether err carries an orphaned-identity
// condition anywhere in its chain.
func IsCompensationFailure(err error) bool {
	var ce *CompensationError
	return errors.As(err, &ce)
}

// IsSessionInvalid reports whether err marks the normal logged-out path.
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}

// HasTextCode checks the rich error chain for the given text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
