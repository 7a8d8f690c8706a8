package identity

import (
	"context"

	"github.com/google/uuid"
)

// Capability checks live here. A Can method verifies (a) that the caller is
// acting as the actor it claims, and (b) that the permission join grants the
// action, then returns a short-lived value whose only method performs the
// mutation. The mutation is never reachable as a free function guarded by a
// boolean, so future code cannot route around the check.
//
// Capability values bind to a specific target, are never persisted, and do
// not outlive the call that produced them.

// PostDraft is the content handed over to the post store.
type PostDraft struct {
	Content string
	Source  string
}

// PostStore is the narrow collaborator boundary to the post subsystem.
type PostStore interface {
	CreatePost(ctx context.Context, actorID uuid.UUID, draft PostDraft) (uuid.UUID, error)
	CreateComment(ctx context.Context, actorID uuid.UUID, parentID uuid.UUID, draft PostDraft) (uuid.UUID, error)
}

// FollowStore is the narrow boundary to the follow-request subsystem.
type FollowStore interface {
	AcceptFollowRequest(ctx context.Context, actorID, requestID uuid.UUID) error
	RejectFollowRequest(ctx context.Context, actorID, requestID uuid.UUID) error
}

// InstanceStore is the narrow boundary to instance configuration.
type InstanceStore interface {
	UpdateSetting(ctx context.Context, key, value string) error
}

// BanStore is the narrow boundary to user bans.
type BanStore interface {
	BanUser(ctx context.Context, userID uuid.UUID) error
}

// can resolves a permission for an authenticated user, distinguishing
// denials from store faults.
func can(ctx context.Context, authz Authorizer, userID uuid.UUID, permission PermissionName) error {
	ok, err := authz.HasPermission(ctx, userID, permission)
	if err != nil {
		return wrapStore(err, "failed to check permission")
	}
	if !ok {
		return annotate(ErrPermissionDenied, map[string]any{
			"permission": string(permission),
		})
	}
	return nil
}

// actingAs verifies the user really owns the actor it claims to act as.
// Acting as someone else's actor is an authorization denial, not a defect:
// the request layer forwards actor ids straight from client input.
func actingAs(user AuthenticatedUserLike, actor Actor) error {
	owner, ok := actor.LocalOwner()
	if !ok || owner != user.ID() {
		return annotate(ErrPermissionDenied, map[string]any{
			"reason":   "actor not owned by user",
			"actor_id": actor.ID.String(),
		})
	}
	return nil
}

// PostMaker is the capability to create a post as one specific actor.
type PostMaker struct {
	actorID uuid.UUID
}

// MakePost performs the permitted mutation.
func (p PostMaker) MakePost(ctx context.Context, posts PostStore, draft PostDraft) (uuid.UUID, error) {
	id, err := posts.CreatePost(ctx, p.actorID, draft)
	if err != nil {
		return uuid.Nil, wrapStore(err, "failed to create post")
	}
	return id, nil
}

// CanMakePost issues the make-post capability for an actor the user owns.
func (u AuthenticatedUser) CanMakePost(ctx context.Context, authz Authorizer, actor Actor) (PostMaker, error) {
	if err := actingAs(u, actor); err != nil {
		return PostMaker{}, err
	}
	if err := can(ctx, authz, u.id, PermissionMakePost); err != nil {
		return PostMaker{}, err
	}
	return PostMaker{actorID: actor.ID}, nil
}

// CommentMaker is the capability to comment in a conversation as one
// specific actor.
type CommentMaker struct {
	actorID uuid.UUID
}

// MakeComment performs the permitted mutation.
func (c CommentMaker) MakeComment(ctx context.Context, posts PostStore, parentID uuid.UUID, draft PostDraft) (uuid.UUID, error) {
	id, err := posts.CreateComment(ctx, c.actorID, parentID, draft)
	if err != nil {
		return uuid.Nil, wrapStore(err, "failed to create comment")
	}
	return id, nil
}

// CanMakeComment issues the make-comment capability for an actor the user
// owns.
func (u AuthenticatedUser) CanMakeComment(ctx context.Context, authz Authorizer, actor Actor) (CommentMaker, error) {
	if err := actingAs(u, actor); err != nil {
		return CommentMaker{}, err
	}
	if err := can(ctx, authz, u.id, PermissionMakeComment); err != nil {
		return CommentMaker{}, err
	}
	return CommentMaker{actorID: actor.ID}, nil
}

// FollowManager is the capability to resolve follow requests aimed at one
// specific actor.
type FollowManager struct {
	actorID uuid.UUID
}

// Accept resolves a follow request positively.
func (f FollowManager) Accept(ctx context.Context, follows FollowStore, requestID uuid.UUID) error {
	if err := follows.AcceptFollowRequest(ctx, f.actorID, requestID); err != nil {
		return wrapStore(err, "failed to accept follow request")
	}
	return nil
}

// Reject resolves a follow request negatively.
func (f FollowManager) Reject(ctx context.Context, follows FollowStore, requestID uuid.UUID) error {
	if err := follows.RejectFollowRequest(ctx, f.actorID, requestID); err != nil {
		return wrapStore(err, "failed to reject follow request")
	}
	return nil
}

// CanManageFollowRequests issues the follow-management capability for an
// actor the user owns.
func (u AuthenticatedUser) CanManageFollowRequests(ctx context.Context, authz Authorizer, actor Actor) (FollowManager, error) {
	if err := actingAs(u, actor); err != nil {
		return FollowManager{}, err
	}
	if err := can(ctx, authz, u.id, PermissionManageFollows); err != nil {
		return FollowManager{}, err
	}
	return FollowManager{actorID: actor.ID}, nil
}

// InstanceConfigurer is the capability to change instance settings.
type InstanceConfigurer struct {
	_ struct{}
}

// Configure applies one setting change.
func (InstanceConfigurer) Configure(ctx context.Context, instance InstanceStore, key, value string) error {
	if err := instance.UpdateSetting(ctx, key, value); err != nil {
		return wrapStore(err, "failed to update instance setting")
	}
	return nil
}

// CanConfigureInstance issues the instance-configuration capability.
func (a AdminUser) CanConfigureInstance(ctx context.Context, authz Authorizer) (InstanceConfigurer, error) {
	if err := can(ctx, authz, a.id, PermissionConfigureInstance); err != nil {
		return InstanceConfigurer{}, err
	}
	return InstanceConfigurer{}, nil
}

// UserBanner is the capability to ban one specific user.
type UserBanner struct {
	targetID uuid.UUID
}

// Ban performs the ban.
func (b UserBanner) Ban(ctx context.Context, bans BanStore) error {
	if err := bans.BanUser(ctx, b.targetID); err != nil {
		return wrapStore(err, "failed to ban user")
	}
	return nil
}

// CanBanUser issues the ban capability bound to the target user. Banning
// yourself is rejected as a denial.
func (a AdminUser) CanBanUser(ctx context.Context, authz Authorizer, target UserLike) (UserBanner, error) {
	if target.ID() == a.id {
		return UserBanner{}, annotate(ErrPermissionDenied, map[string]any{
			"reason": "cannot ban self",
		})
	}
	if err := can(ctx, authz, a.id, PermissionBanUser); err != nil {
		return UserBanner{}, err
	}
	return UserBanner{targetID: target.ID()}, nil
}

// RoleGranter is the capability to grant roles to one specific user.
type RoleGranter struct {
	targetID uuid.UUID
}

// Grant grants the role, idempotently, in the ambient store state.
func (g RoleGranter) Grant(ctx context.Context, authz Authorizer, role RoleName) error {
	if !role.IsValid() {
		return annotate(ErrUnknownRole, map[string]any{"role": string(role)})
	}
	if err := authz.GrantRole(ctx, g.targetID, role); err != nil {
		return wrapStore(err, "failed to grant role")
	}
	return nil
}

// CanGrantRole issues the grant-role capability bound to the target user.
func (a AdminUser) CanGrantRole(ctx context.Context, authz Authorizer, target UserLike) (RoleGranter, error) {
	if err := can(ctx, authz, a.id, PermissionGrantRole); err != nil {
		return RoleGranter{}, err
	}
	return RoleGranter{targetID: target.ID()}, nil
}

// RoleRevoker is the capability to revoke roles from one specific user.
type RoleRevoker struct {
	targetID uuid.UUID
}

// Revoke revokes the role; revoking a role the target does not hold is a
// no-op success.
func (r RoleRevoker) Revoke(ctx context.Context, authz Authorizer, role RoleName) error {
	if !role.IsValid() {
		return annotate(ErrUnknownRole, map[string]any{"role": string(role)})
	}
	if err := authz.RevokeRole(ctx, r.targetID, role); err != nil {
		return wrapStore(err, "failed to revoke role")
	}
	return nil
}

// CanRevokeRole issues the revoke-role capability bound to the target user.
func (a AdminUser) CanRevokeRole(ctx context.Context, authz Authorizer, target UserLike) (RoleRevoker, error) {
	if err := can(ctx, authz, a.id, PermissionRevokeRole); err != nil {
		return RoleRevoker{}, err
	}
	return RoleRevoker{targetID: target.ID()}, nil
}
