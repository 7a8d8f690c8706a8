package identity

import (
	"crypto/subtle"
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed for the whole deployment. Changing it only affects
// hashes created after the change; verification reads the cost from the hash.
const bcryptCost = 12

// bcrypt ignores everything past 72 bytes, so longer inputs would silently
// truncate.
const maxPasswordBytes = 72

const redacted = "********"

// PlaintextPassword carries a user-supplied password through the system. It
// never renders its contents: Stringer, GoStringer, and JSON marshaling all
// emit a fixed redaction.
type PlaintextPassword string

func (p PlaintextPassword) String() string   { return redacted }
func (p PlaintextPassword) GoString() string { return "identity.PlaintextPassword(" + redacted + ")" }

// MarshalJSON redacts; plaintext passwords are accepted on input only.
func (p PlaintextPassword) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (p *PlaintextPassword) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return goerrors.New("password must be a JSON string", goerrors.CategoryBadInput)
	}
	*p = PlaintextPassword(s)
	return nil
}

// ValidatedPassword is a plaintext password that satisfied the active policy.
// It is only obtainable through PasswordValidator.Validate.
type ValidatedPassword struct {
	plaintext PlaintextPassword
}

func (v ValidatedPassword) String() string   { return redacted }
func (v ValidatedPassword) GoString() string { return "identity.ValidatedPassword(" + redacted + ")" }

// PasswordHash is the one-way bcrypt digest persisted on the local auth
// record. Display output is redacted; the raw value only travels to and from
// the store.
type PasswordHash string

func (h PasswordHash) String() string   { return redacted }
func (h PasswordHash) GoString() string { return "identity.PasswordHash(" + redacted + ")" }

func (h PasswordHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// PasswordValidator applies the password policy. The zero value enforces the
// default policy (min 8 bytes, max 72).
type PasswordValidator struct {
	minLength int
}

// PasswordValidatorOption customizes policy construction.
type PasswordValidatorOption func(*PasswordValidator)

// WithMinPasswordLength overrides the minimum accepted length.
func WithMinPasswordLength(n int) PasswordValidatorOption {
	return func(v *PasswordValidator) {
		if n > 0 {
			v.minLength = n
		}
	}
}

// NewPasswordValidator builds a validator with the default policy plus any
// overrides.
func NewPasswordValidator(opts ...PasswordValidatorOption) PasswordValidator {
	v := PasswordValidator{minLength: 8}
	for _, opt := range opts {
		if opt != nil {
			opt(&v)
		}
	}
	return v
}

// Validate rejects candidates failing policy and promotes the rest to
// ValidatedPassword.
func (v PasswordValidator) Validate(p PlaintextPassword) (ValidatedPassword, error) {
	minLength := v.minLength
	if minLength <= 0 {
		minLength = 8
	}

	err := validation.Validate(string(p),
		validation.Required,
		validation.Length(minLength, maxPasswordBytes),
	)
	if err != nil {
		return ValidatedPassword{}, goerrors.Wrap(err, ErrPasswordPolicy.Category, ErrPasswordPolicy.Message).
			WithTextCode(ErrPasswordPolicy.TextCode)
	}

	return ValidatedPassword{plaintext: p}, nil
}

// ComparePasswords implements the registration double-entry check: the
// validated password must byte-match its confirmation before anything is
// hashed.
func ComparePasswords(password ValidatedPassword, confirmation PlaintextPassword) (ValidatedPassword, error) {
	a := []byte(password.plaintext)
	b := []byte(confirmation)
	if len(a) != len(b) || subtle.ConstantTimeCompare(a, b) != 1 {
		return ValidatedPassword{}, ErrConfirmMismatch
	}
	return password, nil
}

// HashPassword derives the salted bcrypt digest for a validated password.
func HashPassword(password ValidatedPassword) (PasswordHash, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password.plaintext), passwordHashCost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return PasswordHash(h), nil
}

// Verify compares a stored hash against a plaintext candidate. A mismatch
// yields ErrInvalidPassword, which is an expected outcome; any other bcrypt
// failure (malformed hash, unsupported version) yields ErrVerifyProcess and
// should be treated as an operational fault.
func (h PasswordHash) Verify(candidate PlaintextPassword) error {
	err := bcrypt.CompareHashAndPassword([]byte(h), []byte(candidate))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPassword
	}
	return goerrors.Wrap(err, ErrVerifyProcess.Category, ErrVerifyProcess.Message).
		WithTextCode(ErrVerifyProcess.TextCode)
}
