package coachgate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LocalGateway is a bun-backed IdentityGateway for development and testing.
// It keeps identities in a local accounts table, hashes credentials with
// bcrypt, and issues HS256 token pairs through the TokenService. Production
// deployments talk to the real provider via provider/gotrue.
type LocalGateway struct {
	db      *bun.DB
	tokens  *TokenService
	refresh *TokenService
	spec    CookieSpec
	logger  Logger
}

type LocalGatewayOption func(*LocalGateway)

func LocalGatewayWithLogger(logger Logger) LocalGatewayOption {
	return func(g *LocalGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func LocalGatewayWithCookieSpec(spec CookieSpec) LocalGatewayOption {
	return func(g *LocalGateway) {
		g.spec = spec
	}
}

// NewLocalGateway wires a local gateway over the given database and signing key.
func NewLocalGateway(db *bun.DB, signingKey []byte, opts ...LocalGatewayOption) *LocalGateway {
	logger := defLogger{}
	g := &LocalGateway{
		db:      db,
		tokens:  NewTokenService(signingKey, time.Hour, "coachgate-local", logger),
		refresh: NewTokenService(signingKey, 30*24*time.Hour, "coachgate-local-refresh", logger),
		spec:    DefaultCookieSpec(),
		logger:  logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

var _ IdentityGateway = (*LocalGateway)(nil)
var _ SessionRevoker = (*LocalGateway)(nil)

// RefreshSession validates the access token and falls back to the refresh
// token when it has expired. Both tokens invalid is the logged-out path:
// ErrSessionInvalid plus clearing mutations.
func (g *LocalGateway) RefreshSession(ctx context.Context, cookies SessionCookies) (*SessionObject, MutationLog, error) {
	if cookies.Empty() {
		return nil, nil, ErrSessionInvalid
	}

	if cookies.AccessToken != "" {
		if claims, err := g.tokens.Validate(cookies.AccessToken); err == nil {
			session, err := SessionFromClaims(claims)
			if err == nil {
				session.AccessToken = cookies.AccessToken
				session.RefreshToken = cookies.RefreshToken
				return session, nil, nil
			}
		}
	}

	if cookies.RefreshToken == "" {
		return nil, g.spec.ClearPair(nil), ErrSessionInvalid
	}

	claims, err := g.refresh.Validate(cookies.RefreshToken)
	if err != nil {
		return nil, g.spec.ClearPair(nil), ErrSessionInvalid
	}

	account, err := g.findAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, g.spec.ClearPair(nil), ErrSessionInvalid
		}
		return nil, nil, err
	}

	return g.issueSession(account)
}

// Authenticate verifies credentials and issues a fresh token pair.
func (g *LocalGateway) Authenticate(ctx context.Context, email, password string) (*SessionObject, MutationLog, error) {
	account, err := g.findAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSessionInvalid
		}
		return nil, nil, err
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		g.logger.Debug("local gateway: password mismatch", "email", email)
		return nil, nil, ErrSessionInvalid
	}

	return g.issueSession(account)
}

// CreateIdentity inserts the account row. IDs are deterministic per email so
// repeated local signups collide the same way the provider's duplicate-email
// policy would.
func (g *LocalGateway) CreateIdentity(ctx context.Context, email, password string) (*IdentityRecord, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	account := &Account{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleClient,
	}
	if id, err := hashid.NewUUID(email); err == nil {
		account.ID = id
	} else {
		account.ID = uuid.New()
	}

	if _, err := g.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	return &IdentityRecord{ID: account.ID.String(), Email: account.Email}, nil
}

// DeleteIdentity removes the account row. Deleting an unknown id is an error
// so saga compensation can detect a failed undo.
func (g *LocalGateway) DeleteIdentity(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid identity id")
	}

	res, err := g.db.NewDelete().Model((*Account)(nil)).Where("id = ?", uid).Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not delete account")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("account %s: %w", id, sql.ErrNoRows)
	}

	return nil
}

// RevokeSession clears the cookie pair. Local tokens are stateless so there
// is nothing to revoke server-side.
func (g *LocalGateway) RevokeSession(_ context.Context, _ SessionCookies) (MutationLog, error) {
	return g.spec.ClearPair(nil), nil
}

func (g *LocalGateway) issueSession(account *Account) (*SessionObject, MutationLog, error) {
	access, err := g.tokens.Generate(account.ID.String(), account.Email, string(account.Role))
	if err != nil {
		return nil, nil, err
	}

	refresh, err := g.refresh.Generate(account.ID.String(), account.Email, string(account.Role))
	if err != nil {
		return nil, nil, err
	}

	claims, err := g.tokens.Validate(access)
	if err != nil {
		return nil, nil, err
	}

	session, err := SessionFromClaims(claims)
	if err != nil {
		return nil, nil, err
	}
	session.AccessToken = access
	session.RefreshToken = refresh

	return session, g.spec.SetPair(nil, access, refresh), nil
}

func (g *LocalGateway) findAccountByID(ctx context.Context, id string) (*Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, sql.ErrNoRows
	}

	account := &Account{}
	if err := g.db.NewSelect().Model(account).Where("?TableAlias.id = ?", uid).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

func (g *LocalGateway) findAccountByEmail(ctx context.Context, email string) (*Account, error) {
	account := &Account{}
	if err := g.db.NewSelect().Model(account).Where("?TableAlias.email = ?", email).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return account, nil
}
