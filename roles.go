package identity

// RoleName is a named bundle of permissions. The set is closed: role checks
// switch over these constants and nothing else.
type RoleName string

const (
	// RoleVerified marks a user whose email passed verification.
	RoleVerified RoleName = "verified"
	// RoleModerator grants moderation actions on other users' content.
	RoleModerator RoleName = "moderator"
	// RoleAdmin grants instance administration, including role management.
	RoleAdmin RoleName = "admin"
)

// PermissionName identifies one protected action.
type PermissionName string

const (
	PermissionMakePost          PermissionName = "make-post"
	PermissionMakeComment       PermissionName = "make-comment"
	PermissionManageFollows     PermissionName = "manage-follow-requests"
	PermissionConfigureInstance PermissionName = "configure-instance"
	PermissionBanUser           PermissionName = "ban-user"
	PermissionGrantRole         PermissionName = "grant-role"
	PermissionRevokeRole        PermissionName = "revoke-role"
)

// IsValid reports whether the role belongs to the closed set.
func (r RoleName) IsValid() bool {
	switch r {
	case RoleVerified, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsValid reports whether the permission belongs to the closed set.
func (p PermissionName) IsValid() bool {
	switch p {
	case PermissionMakePost, PermissionMakeComment, PermissionManageFollows,
		PermissionConfigureInstance, PermissionBanUser,
		PermissionGrantRole, PermissionRevokeRole:
		return true
	default:
		return false
	}
}

// AllRoles returns the closed role set.
func AllRoles() []RoleName {
	return []RoleName{RoleVerified, RoleModerator, RoleAdmin}
}

// AllPermissions returns the closed permission set.
func AllPermissions() []PermissionName {
	return []PermissionName{
		PermissionMakePost,
		PermissionMakeComment,
		PermissionManageFollows,
		PermissionConfigureInstance,
		PermissionBanUser,
		PermissionGrantRole,
		PermissionRevokeRole,
	}
}

// DefaultRolePermissions is the static role_permissions configuration the
// migrations seed. Admin inherits the lower bundles by listing them
// explicitly; the permission join does not recurse.
var DefaultRolePermissions = map[RoleName][]PermissionName{
	RoleVerified: {
		PermissionMakePost,
		PermissionMakeComment,
		PermissionManageFollows,
	},
	RoleModerator: {
		PermissionMakePost,
		PermissionMakeComment,
		PermissionManageFollows,
		PermissionBanUser,
	},
	RoleAdmin: {
		PermissionMakePost,
		PermissionMakeComment,
		PermissionManageFollows,
		PermissionBanUser,
		PermissionConfigureInstance,
		PermissionGrantRole,
		PermissionRevokeRole,
	},
}

// ParseRole parses a stored role name against the closed set.
func ParseRole(s string) (RoleName, bool) {
	r := RoleName(s)
	return r, r.IsValid()
}

// ParsePermission parses a stored permission name against the closed set.
func ParsePermission(s string) (PermissionName, bool) {
	p := PermissionName(s)
	return p, p.IsValid()
}
