package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the local authentication principal. It carries no credential and
// no verified flag of its own: credentials live on LocalAuth, verification
// state on Email rows plus the Verified role.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PrimaryEmailID *uuid.UUID `bun:"primary_email,type:uuid" json:"primary_email,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Queried maps the row to its read-only state-machine view.
func (u *User) Queried() QueriedUser {
	return QueriedUser{userFields{
		id:           u.ID,
		primaryEmail: cloneID(u.PrimaryEmailID),
		createdAt:    u.CreatedAt,
	}}
}

// Unauthenticated maps the row to the state-machine entry point.
func (u *User) Unauthenticated() UnauthenticatedUser {
	return UnauthenticatedUser{userFields{
		id:           u.ID,
		primaryEmail: cloneID(u.PrimaryEmailID),
		createdAt:    u.CreatedAt,
	}}
}

// LocalAuth is the single optional password credential of a user.
type LocalAuth struct {
	bun.BaseModel `bun:"table:local_auth,alias:la"`

	ID           uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID       uuid.UUID    `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	PasswordHash PasswordHash `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Email is one address attached to a user. Invariant: Verified implies
// VerificationTokenHash is nil; the two are flipped together inside the
// verification commit and never separately.
type Email struct {
	bun.BaseModel `bun:"table:emails,alias:eml"`

	ID                    uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Address               string            `bun:"address,notnull,unique" json:"address,omitempty"`
	UserID                uuid.UUID         `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Verified              bool              `bun:"verified,notnull" json:"verified"`
	VerificationTokenHash *HashedEmailToken `bun:"verification_token_hash" json:"-"`
}

// Role is a named permission bundle. Rows mirror the RoleName closed set.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name      string    `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Permission is one protected action identifier.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:prm"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name      string    `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// RolePermission is static configuration joining roles to permissions.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	PermissionID uuid.UUID `bun:"permission_id,pk,type:uuid" json:"permission_id,omitempty"`
}

// UserRole records a grant event. At most one row exists per
// (user_id, role_id); grant and revoke are idempotent against it.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID        uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	RoleID    uuid.UUID `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Password reset request lifecycle.
const (
	ResetStatusRequested = "requested"
	ResetStatusCompleted = "completed"
)

// PasswordReset is one reset request. The plaintext token travels only in
// the reset mail; the row keeps its hash. A row is consumed exactly once.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pr"`

	ID        uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID        `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenHash HashedEmailToken `bun:"token_hash,notnull" json:"-"`
	Status    string           `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Actor is the externally visible identity that owns posts, local or remote.
// Only local actors reference an owning User. The full actor record lives
// outside this core; capability checks only need the ownership link.
type Actor struct {
	ID     uuid.UUID
	UserID *uuid.UUID
}

// LocalOwner returns the owning user id for local actors.
func (a Actor) LocalOwner() (uuid.UUID, bool) {
	if a.UserID == nil {
		return uuid.Nil, false
	}
	return *a.UserID, true
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
