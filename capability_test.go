package identity_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loginAs(t *testing.T, userID uuid.UUID) identity.AuthenticatedUser {
	t.Helper()

	rec := makeLocalAuth(t, userID, "correct horse battery staple")
	authed, err := identity.NewUnauthenticatedUser(userID, nil, time.Now()).
		LogInLocal(rec, "correct horse battery staple")
	require.NoError(t, err)
	return authed
}

func elevate(t *testing.T, user identity.AuthenticatedUser) identity.AdminUser {
	t.Helper()

	authz := new(MockAuthorizer)
	authz.On("HasRole", mock.Anything, user.ID(), identity.RoleAdmin).Return(true, nil)

	admin, ok, err := user.ElevateIfAdmin(context.Background(), authz)
	require.NoError(t, err)
	require.True(t, ok)
	return admin
}

func ownedActor(userID uuid.UUID) identity.Actor {
	id := userID
	return identity.Actor{ID: uuid.New(), UserID: &id}
}

func TestCanMakePost(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	user := loginAs(t, userID)
	actor := ownedActor(userID)

	t.Run("permitted user posts through capability", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, identity.PermissionMakePost).Return(true, nil)

		maker, err := user.CanMakePost(ctx, authz, actor)
		require.NoError(t, err)

		postID := uuid.New()
		draft := identity.PostDraft{Content: "hello fediverse", Source: "hello fediverse"}

		posts := new(MockPostStore)
		posts.On("CreatePost", ctx, actor.ID, draft).Return(postID, nil)

		got, err := maker.MakePost(ctx, posts, draft)
		require.NoError(t, err)
		assert.Equal(t, postID, got)
		posts.AssertExpectations(t)
	})

	t.Run("missing permission is a denial", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, identity.PermissionMakePost).Return(false, nil)

		_, err := user.CanMakePost(ctx, authz, actor)
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
	})

	t.Run("store fault is not a denial", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, identity.PermissionMakePost).
			Return(false, assert.AnError)

		_, err := user.CanMakePost(ctx, authz, actor)
		require.Error(t, err)
		assert.False(t, identity.IsPermissionDenied(err))
	})

	t.Run("acting as someone else's actor is a denial", func(t *testing.T) {
		// The permission join must not even be consulted.
		authz := new(MockAuthorizer)

		_, err := user.CanMakePost(ctx, authz, ownedActor(uuid.New()))
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
		authz.AssertNotCalled(t, "HasPermission", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remote actor without owner is a denial", func(t *testing.T) {
		authz := new(MockAuthorizer)

		_, err := user.CanMakePost(ctx, authz, identity.Actor{ID: uuid.New()})
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
	})
}

func TestCanMakeComment(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	user := loginAs(t, userID)
	actor := ownedActor(userID)

	authz := new(MockAuthorizer)
	authz.On("HasPermission", ctx, userID, identity.PermissionMakeComment).Return(true, nil)

	maker, err := user.CanMakeComment(ctx, authz, actor)
	require.NoError(t, err)

	parentID := uuid.New()
	commentID := uuid.New()
	draft := identity.PostDraft{Content: "agreed"}

	posts := new(MockPostStore)
	posts.On("CreateComment", ctx, actor.ID, parentID, draft).Return(commentID, nil)

	got, err := maker.MakeComment(ctx, posts, parentID, draft)
	require.NoError(t, err)
	assert.Equal(t, commentID, got)
	posts.AssertExpectations(t)
}

func TestCanManageFollowRequests(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	user := loginAs(t, userID)
	actor := ownedActor(userID)
	requestID := uuid.New()

	authz := new(MockAuthorizer)
	authz.On("HasPermission", ctx, userID, identity.PermissionManageFollows).Return(true, nil)

	manager, err := user.CanManageFollowRequests(ctx, authz, actor)
	require.NoError(t, err)

	t.Run("accept", func(t *testing.T) {
		follows := new(MockFollowStore)
		follows.On("AcceptFollowRequest", ctx, actor.ID, requestID).Return(nil)

		require.NoError(t, manager.Accept(ctx, follows, requestID))
		follows.AssertExpectations(t)
	})

	t.Run("reject", func(t *testing.T) {
		follows := new(MockFollowStore)
		follows.On("RejectFollowRequest", ctx, actor.ID, requestID).Return(nil)

		require.NoError(t, manager.Reject(ctx, follows, requestID))
		follows.AssertExpectations(t)
	})
}

func TestCanConfigureInstance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	admin := elevate(t, loginAs(t, userID))

	t.Run("permitted admin configures", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, identity.PermissionConfigureInstance).Return(true, nil)

		configurer, err := admin.CanConfigureInstance(ctx, authz)
		require.NoError(t, err)

		instance := new(MockInstanceStore)
		instance.On("UpdateSetting", ctx, "registration_open", "false").Return(nil)

		require.NoError(t, configurer.Configure(ctx, instance, "registration_open", "false"))
		instance.AssertExpectations(t)
	})

	t.Run("admin without the permission is denied", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, identity.PermissionConfigureInstance).Return(false, nil)

		_, err := admin.CanConfigureInstance(ctx, authz)
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
	})
}

func TestCanBanUser(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New()
	admin := elevate(t, loginAs(t, adminID))
	target := identity.NewUnauthenticatedUser(uuid.New(), nil, time.Now())

	t.Run("permitted admin bans target", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, adminID, identity.PermissionBanUser).Return(true, nil)

		banner, err := admin.CanBanUser(ctx, authz, target)
		require.NoError(t, err)

		bans := new(MockBanStore)
		bans.On("BanUser", ctx, target.ID()).Return(nil)

		require.NoError(t, banner.Ban(ctx, bans))
		bans.AssertExpectations(t)
	})

	t.Run("self ban is denied before the permission check", func(t *testing.T) {
		authz := new(MockAuthorizer)

		_, err := admin.CanBanUser(ctx, authz, admin)
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
		authz.AssertNotCalled(t, "HasPermission", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAdminRoleManagement(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New()
	admin := elevate(t, loginAs(t, adminID))
	target := identity.NewUnauthenticatedUser(uuid.New(), nil, time.Now())

	t.Run("grant goes through the capability to the store", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, adminID, identity.PermissionGrantRole).Return(true, nil)
		authz.On("GrantRole", ctx, target.ID(), identity.RoleModerator).Return(nil)

		require.NoError(t, admin.GrantRole(ctx, authz, target, identity.RoleModerator))
		authz.AssertExpectations(t)
	})

	t.Run("revoke goes through the capability to the store", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, adminID, identity.PermissionRevokeRole).Return(true, nil)
		authz.On("RevokeRole", ctx, target.ID(), identity.RoleModerator).Return(nil)

		require.NoError(t, admin.RevokeRole(ctx, authz, target, identity.RoleModerator))
		authz.AssertExpectations(t)
	})

	t.Run("unknown role name is rejected before the store", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, adminID, identity.PermissionGrantRole).Return(true, nil)

		err := admin.GrantRole(ctx, authz, target, identity.RoleName("superuser"))
		require.Error(t, err)
		assert.True(t, goerrors.Is(err, identity.ErrUnknownRole))
		authz.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("denied admin cannot grant", func(t *testing.T) {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, adminID, identity.PermissionGrantRole).Return(false, nil)

		err := admin.GrantRole(ctx, authz, target, identity.RoleModerator)
		require.Error(t, err)
		assert.True(t, identity.IsPermissionDenied(err))
		authz.AssertNotCalled(t, "GrantRole", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDenialMetadataStaysPerCall(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	user := loginAs(t, userID)
	actor := ownedActor(userID)

	deny := func(permission identity.PermissionName) *goerrors.Error {
		authz := new(MockAuthorizer)
		authz.On("HasPermission", ctx, userID, permission).Return(false, nil)

		var err error
		switch permission {
		case identity.PermissionMakePost:
			_, err = user.CanMakePost(ctx, authz, actor)
		default:
			_, err = user.CanMakeComment(ctx, authz, actor)
		}
		require.Error(t, err)

		var denied *goerrors.Error
		require.True(t, goerrors.As(err, &denied))
		return denied
	}

	first := deny(identity.PermissionMakePost)
	second := deny(identity.PermissionMakeComment)

	// Each denial carries only its own context.
	assert.Equal(t, string(identity.PermissionMakePost), first.Metadata["permission"])
	assert.Equal(t, string(identity.PermissionMakeComment), second.Metadata["permission"])
	assert.NotEqual(t, first.Metadata["permission"], second.Metadata["permission"])

	// The shared sentinel never accumulates call metadata, and both
	// denials still match it.
	assert.Empty(t, identity.ErrPermissionDenied.Metadata)
	assert.True(t, goerrors.Is(first, identity.ErrPermissionDenied))
	assert.True(t, goerrors.Is(second, identity.ErrPermissionDenied))
}
