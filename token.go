package identity

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// emailTokenBytes of entropy go into each verification token. The token
// itself is high-entropy random data, so the hash cost can stay low without
// enabling offline guessing.
const (
	emailTokenBytes = 32
	emailTokenCost  = bcrypt.MinCost
)

// EmailToken is the plaintext verification token embedded in the email link.
// It is never persisted and, like passwords, never renders its contents
// outside of Reveal.
type EmailToken string

func (t EmailToken) String() string   { return redacted }
func (t EmailToken) GoString() string { return "identity.EmailToken(" + redacted + ")" }

func (t EmailToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (t *EmailToken) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return goerrors.New("token must be a JSON string", goerrors.CategoryBadInput)
	}
	*t = EmailToken(s)
	return nil
}

// Reveal returns the raw token for embedding in the outbound verification
// mail. That is its only legitimate destination.
func (t EmailToken) Reveal() string { return string(t) }

// HashedEmailToken is the one-way digest persisted on the email row.
type HashedEmailToken string

func (h HashedEmailToken) String() string   { return redacted }
func (h HashedEmailToken) GoString() string { return "identity.HashedEmailToken(" + redacted + ")" }

func (h HashedEmailToken) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// CreateEmailToken draws a fresh random token and returns both the plaintext
// (for the verification mail) and the hash (for the email row). Failure here
// means the entropy source or hash engine is unavailable and is not
// recoverable by retrying with different input.
func CreateEmailToken() (EmailToken, HashedEmailToken, error) {
	buf := make([]byte, emailTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, ErrTokenCreation.Category, ErrTokenCreation.Message).
			WithTextCode(ErrTokenCreation.TextCode)
	}

	token := EmailToken(base64.RawURLEncoding.EncodeToString(buf))

	h, err := bcrypt.GenerateFromPassword([]byte(token), emailTokenCost)
	if err != nil {
		return "", "", goerrors.Wrap(err, ErrTokenCreation.Category, ErrTokenCreation.Message).
			WithTextCode(ErrTokenCreation.TextCode)
	}

	return token, HashedEmailToken(h), nil
}

// Verify compares the stored hash against a candidate token in constant
// time. Mismatches are expected outcomes (ErrInvalidToken); anything else is
// a process fault.
func (h HashedEmailToken) Verify(candidate EmailToken) error {
	err := bcrypt.CompareHashAndPassword([]byte(h), []byte(candidate))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidToken
	}
	return goerrors.Wrap(err, ErrVerifyProcess.Category, ErrVerifyProcess.Message).
		WithTextCode(ErrVerifyProcess.TextCode)
}
