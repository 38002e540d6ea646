package coachgate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the profile repository surface.
type Profiles interface {
	repository.Repository[*Profile]

	GetByIdentityID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByIdentityIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

// NewProfilesRepository builds the bun-backed profile repository.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) GetByIdentityID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.GetByIdentityIDTx(ctx, r.db, id)
}

func (r *profiles) GetByIdentityIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, ErrProfileNotFound
	}
	return record, nil
}

// bunProfileStore adapts the repository to the narrow ProfileStore contract
// the saga consumes.
type bunProfileStore struct {
	repo        Profiles
	phoneRegion string
}

// NewProfileStore returns a ProfileStore over the bun repository.
func NewProfileStore(repo Profiles, phoneRegion string) ProfileStore {
	return &bunProfileStore{repo: repo, phoneRegion: phoneRegion}
}

func (s *bunProfileStore) CreateProfile(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.ID == uuid.Nil {
		return goerrors.New("profile requires an identity id", goerrors.CategoryValidation)
	}

	profile.NormalizePhone(s.phoneRegion)

	if _, err := s.repo.Create(ctx, profile); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create profile")
	}

	return nil
}
