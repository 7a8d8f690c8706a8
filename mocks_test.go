package identity_test

import (
	"context"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAuthorizer implements identity.Authorizer
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) HasRole(ctx context.Context, userID uuid.UUID, role identity.RoleName) (bool, error) {
	args := m.Called(ctx, userID, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizer) HasRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role identity.RoleName) (bool, error) {
	args := m.Called(ctx, tx, userID, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizer) HasPermission(ctx context.Context, userID uuid.UUID, permission identity.PermissionName) (bool, error) {
	args := m.Called(ctx, userID, permission)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizer) HasPermissionTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, permission identity.PermissionName) (bool, error) {
	args := m.Called(ctx, tx, userID, permission)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizer) GrantRole(ctx context.Context, userID uuid.UUID, role identity.RoleName) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockAuthorizer) GrantRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role identity.RoleName) error {
	args := m.Called(ctx, tx, userID, role)
	return args.Error(0)
}

func (m *MockAuthorizer) RevokeRole(ctx context.Context, userID uuid.UUID, role identity.RoleName) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockAuthorizer) RevokeRoleTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role identity.RoleName) error {
	args := m.Called(ctx, tx, userID, role)
	return args.Error(0)
}

// MockPostStore implements identity.PostStore
type MockPostStore struct {
	mock.Mock
}

func (m *MockPostStore) CreatePost(ctx context.Context, actorID uuid.UUID, draft identity.PostDraft) (uuid.UUID, error) {
	args := m.Called(ctx, actorID, draft)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockPostStore) CreateComment(ctx context.Context, actorID uuid.UUID, parentID uuid.UUID, draft identity.PostDraft) (uuid.UUID, error) {
	args := m.Called(ctx, actorID, parentID, draft)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockFollowStore implements identity.FollowStore
type MockFollowStore struct {
	mock.Mock
}

func (m *MockFollowStore) AcceptFollowRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	args := m.Called(ctx, actorID, requestID)
	return args.Error(0)
}

func (m *MockFollowStore) RejectFollowRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	args := m.Called(ctx, actorID, requestID)
	return args.Error(0)
}

// MockBanStore implements identity.BanStore
type MockBanStore struct {
	mock.Mock
}

func (m *MockBanStore) BanUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockInstanceStore implements identity.InstanceStore
type MockInstanceStore struct {
	mock.Mock
}

func (m *MockInstanceStore) UpdateSetting(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// capturingSink collects audit events for assertions.
type capturingSink struct {
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}
