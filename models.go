package coachgate

import (
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// UserRole is the profile's role
type UserRole = string

const (
	// RoleClient is a coaching client (default for new signups)
	RoleClient UserRole = "client"
	// RoleCoach is a coach with access to assigned client data
	RoleCoach UserRole = "coach"
	// RoleAdmin is an operator role
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleClient, RoleCoach, RoleAdmin:
		return true
	default:
		return false
	}
}

func normalizeRole(r string) UserRole {
	if IsValidRole(r) {
		return r
	}
	return RoleClient
}

// Profile is the profile model. Its ID is a foreign reference to the
// identity-provider record, never an independent key: a profile must not
// exist without an identity of the same id.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:pro"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NormalizePhone formats the phone number in E164 for the given region.
// Invalid numbers are left untouched; the field is optional.
func (p *Profile) NormalizePhone(region string) {
	if p.Phone == "" {
		return
	}
	if region == "" {
		region = "US"
	}

	num, err := phonenumbers.Parse(p.Phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return
	}
	p.Phone = phonenumbers.Format(num, phonenumbers.E164)
}

// Account is the identity table backing the local development gateway. In
// production the identity provider owns this data.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
