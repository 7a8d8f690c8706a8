package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeSessionExpired   = "identity_session_expired"
	TextCodeSessionMalformed = "identity_session_malformed"
)

// ErrSessionExpired is returned when a session token is past its expiry.
var ErrSessionExpired = goerrors.New("session token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionMalformed is returned for tokens that fail parsing or signature
// checks.
var ErrSessionMalformed = goerrors.New("session token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMalformed).
	WithCode(goerrors.CodeUnauthorized)

// SessionClaims is the JWT payload minted for an authenticated user. Roles
// are a snapshot at mint time; privileged mutations still re-check the store
// through capabilities, so a stale snapshot cannot widen access.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID   string   `json:"uid"`
	Roles []string `json:"roles,omitempty"`
}

// SessionMinter issues and validates short-lived bearer tokens for users
// that already passed the password check. The minter accepts only
// AuthenticatedUserLike values, so there is no way to mint a session for a
// user that skipped authentication.
type SessionMinter struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// SessionMinterOption customizes minter construction.
type SessionMinterOption func(*SessionMinter)

// WithSessionTTL overrides the default one-hour expiry.
func WithSessionTTL(ttl time.Duration) SessionMinterOption {
	return func(m *SessionMinter) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSessionIssuer sets the iss claim.
func WithSessionIssuer(issuer string) SessionMinterOption {
	return func(m *SessionMinter) {
		m.issuer = issuer
	}
}

// WithSessionAudience sets the aud claim.
func WithSessionAudience(audience ...string) SessionMinterOption {
	return func(m *SessionMinter) {
		m.audience = jwt.ClaimStrings(audience)
	}
}

// WithSessionLogger overrides the default logger.
func WithSessionLogger(l Logger) SessionMinterOption {
	return func(m *SessionMinter) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionMinterOption {
	return func(m *SessionMinter) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewSessionMinter builds a minter around an HS256 signing key.
func NewSessionMinter(signingKey []byte, opts ...SessionMinterOption) *SessionMinter {
	m := &SessionMinter{
		signingKey: signingKey,
		ttl:        time.Hour,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Mint signs a session token for the user, snapshotting their current roles
// from the store.
func (m *SessionMinter) Mint(ctx context.Context, user AuthenticatedUserLike, authz Authorizer) (string, error) {
	var roles []string
	for _, role := range AllRoles() {
		ok, err := authz.HasRole(ctx, user.ID(), role)
		if err != nil {
			return "", wrapStore(err, "failed to snapshot roles")
		}
		if ok {
			roles = append(roles, string(role))
		}
	}

	now := m.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID().String(),
			Audience:  m.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UID:   user.ID().String(),
		Roles: roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Validate parses and verifies a session token string.
func (m *SessionMinter) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if m.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(m.issuer))
	}
	if len(m.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(m.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			m.logger.Error("session validate unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, ErrSessionMalformed.Category, ErrSessionMalformed.Message).
			WithTextCode(ErrSessionMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrSessionMalformed
}
