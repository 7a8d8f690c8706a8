package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserLike is the minimal read surface shared by every user state. Each
// state embeds the same field set, so all of them satisfy it for free.
type UserLike interface {
	ID() uuid.UUID
	// PrimaryEmail returns the primary email id, if one has been set.
	PrimaryEmail() (uuid.UUID, bool)
	CreatedAt() time.Time
}

// AuthenticatedUserLike is satisfied only by states that passed a credential
// check. Functions that require proof of authentication accept this
// interface instead of UserLike.
type AuthenticatedUserLike interface {
	UserLike
	authenticated()
}

type userFields struct {
	id           uuid.UUID
	primaryEmail *uuid.UUID
	createdAt    time.Time
}

func (u userFields) ID() uuid.UUID { return u.id }

func (u userFields) PrimaryEmail() (uuid.UUID, bool) {
	if u.primaryEmail == nil {
		return uuid.Nil, false
	}
	return *u.primaryEmail, true
}

func (u userFields) CreatedAt() time.Time { return u.createdAt }

// QueriedUser is a read-only projection of a user row. It proves nothing and
// permits nothing.
type QueriedUser struct {
	userFields
}

// UnauthenticatedUser is the state a lookup-by-credential produces: we know
// which row matched, but no credential has been checked yet. It is the only
// entry point into the state machine.
type UnauthenticatedUser struct {
	userFields
}

// NewUnauthenticatedUser maps a store row into the state machine. The
// request layer calls this after its lookup; it is a plain constructor, not
// a check.
func NewUnauthenticatedUser(id uuid.UUID, primaryEmail *uuid.UUID, createdAt time.Time) UnauthenticatedUser {
	return UnauthenticatedUser{userFields{
		id:           id,
		primaryEmail: cloneID(primaryEmail),
		createdAt:    createdAt,
	}}
}

// LogInLocal consumes the unauthenticated state and returns the
// authenticated one if the candidate password verifies against the user's
// local auth record.
//
// A record belonging to a different user is a caller defect and surfaces as
// a process fault, not a password mismatch: reporting it as a mismatch would
// hide the bug behind an expected error.
func (u UnauthenticatedUser) LogInLocal(rec *LocalAuth, candidate PlaintextPassword) (AuthenticatedUser, error) {
	if rec == nil || rec.UserID != u.id {
		return AuthenticatedUser{}, annotate(ErrVerifyProcess, map[string]any{
			"reason": "local auth record does not belong to user",
		})
	}

	if err := rec.PasswordHash.Verify(candidate); err != nil {
		return AuthenticatedUser{}, err
	}

	return AuthenticatedUser{u.userFields}, nil
}

// VerifiedState is the result of CheckVerified: either VerifiedUser or
// UnverifiedUser, nothing else.
type VerifiedState interface {
	verifiedState()
}

// VerifiedUser wraps an unauthenticated user known to hold the Verified
// role.
type VerifiedUser struct {
	UnauthenticatedUser
}

func (VerifiedUser) verifiedState()   {}
func (UnverifiedUser) verifiedState() {}

// CheckVerified splits on the Verified role. The unverified branch drops the
// primary email: an unverified user has no business reading or setting one.
func (u UnauthenticatedUser) CheckVerified(ctx context.Context, authz Authorizer) (VerifiedState, error) {
	ok, err := authz.HasRole(ctx, u.id, RoleVerified)
	if err != nil {
		return nil, wrapStore(err, "failed to check verified role")
	}
	if ok {
		return VerifiedUser{u}, nil
	}
	return UnverifiedUser{id: u.id, createdAt: u.createdAt}, nil
}

// UnverifiedUser is a user that has not completed email verification. It
// deliberately carries no primary email field.
type UnverifiedUser struct {
	id        uuid.UUID
	createdAt time.Time
}

func (u UnverifiedUser) ID() uuid.UUID        { return u.id }
func (u UnverifiedUser) CreatedAt() time.Time { return u.createdAt }

// Verify checks the supplied token against the email's stored hash and, on
// success, produces the in-memory verification bundle. Nothing is persisted
// until the bundle is committed.
//
// An email with no stored token hash cannot be verified; that state should
// be unreachable and is reported as a process fault.
func (u UnverifiedUser) Verify(email UnverifiedEmail, token EmailToken) (PendingVerification, error) {
	if email.tokenHash == nil {
		return PendingVerification{}, annotate(ErrVerifyProcess, map[string]any{
			"reason": "unverified email has no token hash",
		})
	}

	if err := email.tokenHash.Verify(token); err != nil {
		return PendingVerification{}, err
	}

	return PendingVerification{
		user: AuthenticatedUser{userFields{
			id:        u.id,
			createdAt: u.createdAt,
		}},
		email: email,
	}, nil
}

// PendingVerification pairs the now-authenticated user with the email update
// to apply. It exists only to be committed.
type PendingVerification struct {
	user  AuthenticatedUser
	email UnverifiedEmail
}

// Commit applies the verification atomically: mark the email verified and
// clear its token hash, grant the Verified role, and set the user's primary
// email. A failure at any step rolls back all of it, so a half-verified
// state is never observable.
func (p PendingVerification) Commit(ctx context.Context, repo RepositoryManager) (AuthenticatedUser, VerifiedEmail, error) {
	if p.email.userID != p.user.id {
		return AuthenticatedUser{}, VerifiedEmail{}, annotate(ErrIDMismatch, map[string]any{
			"user_id":       p.user.id.String(),
			"email_user_id": p.email.userID.String(),
		})
	}

	var verified VerifiedEmail

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		v, err := repo.Emails().MarkVerifiedTx(ctx, tx, p.email)
		if err != nil {
			return err
		}

		if err := repo.Authz().GrantRoleTx(ctx, tx, p.user.id, RoleVerified); err != nil {
			return err
		}

		if err := repo.Users().SetPrimaryEmailTx(ctx, tx, p.user.id, v.EmailID()); err != nil {
			return err
		}

		verified = v
		return nil
	})
	if err != nil {
		return AuthenticatedUser{}, VerifiedEmail{}, err
	}

	user := p.user
	id := verified.EmailID()
	user.primaryEmail = &id

	return user, verified, nil
}

// AuthenticatedUser is a user whose password check succeeded. It is the
// terminal state for ordinary sessions and the only base for elevation.
type AuthenticatedUser struct {
	userFields
}

func (AuthenticatedUser) authenticated() {}

// SetPrimaryEmail persists the primary email reference and updates the
// in-memory state. Only verified emails qualify, which the VerifiedEmail
// parameter type enforces; ownership still has to be checked at runtime.
func (u *AuthenticatedUser) SetPrimaryEmail(ctx context.Context, users Users, email VerifiedEmail) error {
	if email.OwnerID() != u.id {
		return annotate(ErrRelationMismatch, map[string]any{
			"user_id":       u.id.String(),
			"email_user_id": email.OwnerID().String(),
		})
	}

	if err := users.SetPrimaryEmail(ctx, u.id, email.EmailID()); err != nil {
		return wrapStore(err, "failed to set primary email")
	}

	id := email.EmailID()
	u.primaryEmail = &id
	return nil
}

// IsVerified is a fresh role query; the result is not cached.
func (u AuthenticatedUser) IsVerified(ctx context.Context, authz Authorizer) (bool, error) {
	return u.hasRole(ctx, authz, RoleVerified)
}

// IsModerator is a fresh role query.
func (u AuthenticatedUser) IsModerator(ctx context.Context, authz Authorizer) (bool, error) {
	return u.hasRole(ctx, authz, RoleModerator)
}

// IsAdmin is a fresh role query.
func (u AuthenticatedUser) IsAdmin(ctx context.Context, authz Authorizer) (bool, error) {
	return u.hasRole(ctx, authz, RoleAdmin)
}

func (u AuthenticatedUser) hasRole(ctx context.Context, authz Authorizer, role RoleName) (bool, error) {
	ok, err := authz.HasRole(ctx, u.id, role)
	if err != nil {
		return false, wrapStore(err, "failed to check role")
	}
	return ok, nil
}

// ElevateIfAdmin checks the Admin role and returns the narrower AdminUser
// type on success. This is the only way to obtain an AdminUser. The rejected
// branch returns ok == false with the receiver otherwise unchanged.
func (u AuthenticatedUser) ElevateIfAdmin(ctx context.Context, authz Authorizer) (AdminUser, bool, error) {
	ok, err := u.IsAdmin(ctx, authz)
	if err != nil {
		return AdminUser{}, false, err
	}
	if !ok {
		return AdminUser{}, false, nil
	}
	return AdminUser{u}, true, nil
}

// AdminUser is an AuthenticatedUser that additionally proved the Admin role.
type AdminUser struct {
	AuthenticatedUser
}

// GrantRole grants a role to another user through the grant-role capability.
func (a AdminUser) GrantRole(ctx context.Context, authz Authorizer, target UserLike, role RoleName) error {
	granter, err := a.CanGrantRole(ctx, authz, target)
	if err != nil {
		return err
	}
	return granter.Grant(ctx, authz, role)
}

// RevokeRole revokes a role from another user through the revoke-role
// capability.
func (a AdminUser) RevokeRole(ctx context.Context, authz Authorizer, target UserLike, role RoleName) error {
	revoker, err := a.CanRevokeRole(ctx, authz, target)
	if err != nil {
		return err
	}
	return revoker.Revoke(ctx, authz, role)
}
