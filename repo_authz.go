package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// authzStore implements Authorizer against the relational role tables. The
// Tx variants run inside whatever transaction the caller already holds; the
// plain variants hit the base connection. No decision is ever cached.
type authzStore struct {
	db *bun.DB
}

var _ Authorizer = (*authzStore)(nil)

// NewAuthorizer builds the default bun-backed Authorizer.
func NewAuthorizer(db *bun.DB) Authorizer {
	return &authzStore{db: db}
}

func (a *authzStore) HasRole(ctx context.Context, userID uuid.UUID, role RoleName) (bool, error) {
	return a.HasRoleTx(ctx, a.db, userID, role)
}

func (a *authzStore) HasRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) (bool, error) {
	if !role.IsValid() {
		return false, annotate(ErrUnknownRole, map[string]any{"role": string(role)})
	}

	count, err := tx.NewSelect().
		Model((*UserRole)(nil)).
		Join("JOIN roles AS rl ON rl.id = ur.role_id").
		Where("ur.user_id = ?", userID).
		Where("rl.name = ?", string(role)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *authzStore) HasPermission(ctx context.Context, userID uuid.UUID, permission PermissionName) (bool, error) {
	return a.HasPermissionTx(ctx, a.db, userID, permission)
}

func (a *authzStore) HasPermissionTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, permission PermissionName) (bool, error) {
	if !permission.IsValid() {
		return false, annotate(ErrUnknownPermission, map[string]any{
			"permission": string(permission),
		})
	}

	count, err := tx.NewSelect().
		Model((*UserRole)(nil)).
		Join("JOIN role_permissions AS rp ON rp.role_id = ur.role_id").
		Join("JOIN permissions AS prm ON prm.id = rp.permission_id").
		Where("ur.user_id = ?", userID).
		Where("prm.name = ?", string(permission)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *authzStore) GrantRole(ctx context.Context, userID uuid.UUID, role RoleName) error {
	return a.GrantRoleTx(ctx, a.db, userID, role)
}

func (a *authzStore) GrantRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) error {
	has, err := a.HasRoleTx(ctx, tx, userID, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	roleRow := &Role{}
	err = tx.NewSelect().
		Model(roleRow).
		Where("?TableAlias.name = ?", string(role)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return annotate(ErrUnknownRole, map[string]any{"role": string(role)})
		}
		return err
	}

	grant := &UserRole{
		ID:     uuid.New(),
		UserID: userID,
		RoleID: roleRow.ID,
	}

	// The uniqueness constraint on (user_id, role_id) plus DO NOTHING keeps
	// concurrent grants from producing a second row.
	_, err = tx.NewInsert().
		Model(grant).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (a *authzStore) RevokeRole(ctx context.Context, userID uuid.UUID, role RoleName) error {
	return a.RevokeRoleTx(ctx, a.db, userID, role)
}

func (a *authzStore) RevokeRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role RoleName) error {
	if !role.IsValid() {
		return annotate(ErrUnknownRole, map[string]any{"role": string(role)})
	}

	// Deleting zero rows is the idempotent no-op branch.
	_, err := tx.NewDelete().
		Model((*UserRole)(nil)).
		Where("ur.user_id = ?", userID).
		Where("ur.role_id IN (SELECT id FROM roles WHERE name = ?)", string(role)).
		Exec(ctx)
	return err
}
