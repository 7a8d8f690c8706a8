package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// EmailState is the verified/unverified split of an email row. The set is
// closed: VerifiedEmail and UnverifiedEmail are the only variants, so a type
// switch over EmailState is exhaustive.
type EmailState interface {
	emailState()
	EmailID() uuid.UUID
	Address() string
	OwnerID() uuid.UUID
}

// VerifiedEmail proves its address passed token verification. It is only
// produced by ToVerified on a verified row or by a successful commit.
type VerifiedEmail struct {
	id      uuid.UUID
	address string
	userID  uuid.UUID
}

func (VerifiedEmail) emailState()          {}
func (e VerifiedEmail) EmailID() uuid.UUID { return e.id }
func (e VerifiedEmail) Address() string    { return e.address }
func (e VerifiedEmail) OwnerID() uuid.UUID { return e.userID }

// UnverifiedEmail still carries its verification token hash and cannot be
// used as a primary email.
type UnverifiedEmail struct {
	id        uuid.UUID
	address   string
	userID    uuid.UUID
	tokenHash *HashedEmailToken
}

func (UnverifiedEmail) emailState()          {}
func (e UnverifiedEmail) EmailID() uuid.UUID { return e.id }
func (e UnverifiedEmail) Address() string    { return e.address }
func (e UnverifiedEmail) OwnerID() uuid.UUID { return e.userID }

// ToVerified splits the row on its verified flag.
func (e *Email) ToVerified() EmailState {
	if e.Verified {
		return VerifiedEmail{id: e.ID, address: e.Address, userID: e.UserID}
	}
	return UnverifiedEmail{
		id:        e.ID,
		address:   e.Address,
		userID:    e.UserID,
		tokenHash: e.VerificationTokenHash,
	}
}

// ValidateEmailAddress rejects empty or malformed addresses. Callers that
// open a transaction should run it first so a bad address never costs
// inserts that only roll back.
func ValidateEmailAddress(address string) error {
	if err := validation.Validate(address, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email address")
	}
	return nil
}

// NewEmail builds an unverified email row for a user together with the
// plaintext token to embed in the verification mail. The plaintext is never
// persisted; only its hash lands on the row.
func NewEmail(address string, user UserLike) (*Email, EmailToken, error) {
	if err := ValidateEmailAddress(address); err != nil {
		return nil, "", err
	}

	token, hash, err := CreateEmailToken()
	if err != nil {
		return nil, "", err
	}

	return &Email{
		ID:                    uuid.New(),
		Address:               address,
		UserID:                user.ID(),
		Verified:              false,
		VerificationTokenHash: &hash,
	}, token, nil
}
