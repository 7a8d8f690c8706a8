package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Authorizer is the boundary to the role/permission store. Every check is
// evaluated fresh against current store state; nothing here caches
// decisions across calls.
//
// The Tx variants participate in the caller's ambient transaction and never
// open their own. The plain variants run against the base connection and
// exist for single-read checks outside a workflow.
type Authorizer interface {
	HasRole(ctx context.Context, userID uuid.UUID, role RoleName) (bool, error)
	HasRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) (bool, error)

	// HasPermission resolves the transitive join
	// user_roles -> roles -> role_permissions -> permissions.
	HasPermission(ctx context.Context, userID uuid.UUID, permission PermissionName) (bool, error)
	HasPermissionTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, permission PermissionName) (bool, error)

	// GrantRole is idempotent: granting an already held role is a no-op
	// success, so retries after transient store failures are safe.
	GrantRole(ctx context.Context, userID uuid.UUID, role RoleName) error
	GrantRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) error

	// RevokeRole is idempotent: revoking a role the user does not hold is a
	// no-op success.
	RevokeRole(ctx context.Context, userID uuid.UUID, role RoleName) error
	RevokeRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) error
}
