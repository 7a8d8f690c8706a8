// Package identity is the authentication and authorization core of a
// federated social-network service: it turns an anonymous request into an
// authenticated principal, verifies email ownership, and converts permission
// checks into single-use capability values.
//
// Type-state user model:
//   - Identity is not one mutable struct with a status flag. Each stage is
//     its own type (UnauthenticatedUser, UnverifiedUser, AuthenticatedUser,
//     AdminUser) and transitions consume the prior state by value, so a
//     privileged method is unreachable on a value that has not passed the
//     required check. ElevateIfAdmin is the only way to obtain an AdminUser.
//   - Email rows split the same way: ToVerified yields either VerifiedEmail
//     or UnverifiedEmail, and only a VerifiedEmail can become a primary
//     email.
//
// Capabilities:
//   - Permission checks do not return booleans. A successful Can* check
//     returns a short-lived value (PostMaker, RoleGranter, ...) bound to a
//     specific target, whose only method performs the permitted mutation.
//     Capabilities are never persisted and do not outlive the call that
//     produced them.
//
// Transactions:
//   - Multi-entity mutations (the email verification commit, registration)
//     run inside RepositoryManager.RunInTx; repository Tx variants
//     participate in the caller's transaction and never open their own, so
//     a failure at any step rolls back the whole operation.
//
// Audit:
//   - ActivitySink receives login, verification, and role-management events
//     best-effort. Password and token mismatches are audit events, not
//     operational errors; process faults (corrupt hashes, engine failures)
//     are logged through Logger.
package identity
