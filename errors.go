package identity

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidPassword     = "identity_invalid_password"
	TextCodeInvalidToken        = "identity_invalid_token"
	TextCodeVerifyProcess       = "identity_verify_process"
	TextCodePasswordPolicy      = "identity_password_policy"
	TextCodeConfirmMismatch     = "identity_password_confirm_mismatch"
	TextCodePermissionDenied    = "identity_permission_denied"
	TextCodeIDMismatch          = "identity_id_mismatch"
	TextCodeRelationMismatch    = "identity_relation_mismatch"
	TextCodeAlreadyVerified     = "identity_email_already_verified"
	TextCodeUnknownRole         = "identity_unknown_role"
	TextCodeUnknownPermission   = "identity_unknown_permission"
	TextCodeTokenCreationFailed = "identity_token_creation_failed"
	TextCodeResetConsumed       = "identity_password_reset_consumed"
	TextCodeResetExpired        = "identity_password_reset_expired"
)

// ErrInvalidPassword is the expected outcome of a failed password check. It
// is an audit event, not an operational fault, and callers must not log it
// as an anomaly.
var ErrInvalidPassword = errors.New("invalid password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken is the token analogue of ErrInvalidPassword: the supplied
// verification token does not match the stored hash.
var ErrInvalidToken = errors.New("invalid verification token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrVerifyProcess signals that the hash comparison itself failed (corrupt
// stored hash, engine failure). Unlike a mismatch this IS an operational
// fault and should be logged.
var ErrVerifyProcess = errors.New("verification process failed", errors.CategoryInternal).
	WithTextCode(TextCodeVerifyProcess).
	WithCode(errors.CodeInternal)

// ErrPasswordPolicy is returned when a plaintext candidate fails validation.
var ErrPasswordPolicy = errors.New("password does not meet policy", errors.CategoryValidation).
	WithTextCode(TextCodePasswordPolicy).
	WithCode(errors.CodeBadRequest)

// ErrConfirmMismatch is returned when the double-entered passwords differ.
var ErrConfirmMismatch = errors.New("passwords do not match", errors.CategoryValidation).
	WithTextCode(TextCodeConfirmMismatch).
	WithCode(errors.CodeBadRequest)

// ErrPermissionDenied is the expected authorization denial (403-equivalent).
// Store faults are wrapped separately and never collapsed into this error.
var ErrPermissionDenied = errors.New("permission denied", errors.CategoryAuth).
	WithTextCode(TextCodePermissionDenied).
	WithCode(errors.CodeForbidden)

// ErrIDMismatch indicates two values passed to a method do not belong
// together (e.g. a local auth record for a different user). This is a caller
// defect, not an expected runtime condition.
var ErrIDMismatch = errors.New("record belongs to a different user", errors.CategoryConflict).
	WithTextCode(TextCodeIDMismatch).
	WithCode(errors.CodeConflict)

// ErrRelationMismatch is returned when an email handed to SetPrimaryEmail is
// owned by a different user.
var ErrRelationMismatch = errors.New("email belongs to a different user", errors.CategoryConflict).
	WithTextCode(TextCodeRelationMismatch).
	WithCode(errors.CodeConflict)

// ErrEmailAlreadyVerified rejects re-verification of an already verified
// email. Verification transitions exactly once.
var ErrEmailAlreadyVerified = errors.New("email already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrUnknownRole is returned when a role name is outside the closed set or
// missing from the roles table.
var ErrUnknownRole = errors.New("unknown role", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownRole).
	WithCode(errors.CodeBadRequest)

// ErrUnknownPermission is returned for permission names outside the closed set.
var ErrUnknownPermission = errors.New("unknown permission", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownPermission).
	WithCode(errors.CodeBadRequest)

// ErrTokenCreation is the unrecoverable creation failure: the random source
// or the hash engine refused to produce a token.
var ErrTokenCreation = errors.New("could not create verification token", errors.CategoryInternal).
	WithTextCode(TextCodeTokenCreationFailed).
	WithCode(errors.CodeInternal)

// ErrResetConsumed rejects a password reset request that has already been
// used. Requests are consumed exactly once.
var ErrResetConsumed = errors.New("password reset already used", errors.CategoryConflict).
	WithTextCode(TextCodeResetConsumed).
	WithCode(errors.CodeConflict)

// ErrResetExpired rejects a password reset request past its validity window.
var ErrResetExpired = errors.New("password reset expired", errors.CategoryValidation).
	WithTextCode(TextCodeResetExpired).
	WithCode(errors.CodeBadRequest)

// IsCredentialMismatch reports whether err is an expected password or token
// mismatch, as opposed to a process fault.
func IsCredentialMismatch(err error) bool {
	return errors.Is(err, ErrInvalidPassword) || errors.Is(err, ErrInvalidToken)
}

// IsProcessFault reports whether err is an internal verification fault that
// should be surfaced to operators.
func IsProcessFault(err error) bool {
	return errors.Is(err, ErrVerifyProcess)
}

// IsPermissionDenied reports whether err is an authorization denial rather
// than a store fault.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// wrapStore tags an underlying persistence fault so it is never mistaken for
// an authorization denial.
func wrapStore(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

// annotate attaches per-call metadata to a copy of a sentinel. WithMetadata
// writes into the receiver's map, so calling it on the shared sentinel would
// leak one request's context into every later error and race under
// concurrent callers. The clone keeps the sentinel as its Source so
// errors.Is still matches.
func annotate(sentinel *errors.Error, meta map[string]any) *errors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}
