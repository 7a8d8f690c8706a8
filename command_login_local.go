package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LoginLocalMessage carries a local login attempt.
type LoginLocalMessage struct {
	Email    string            `json:"email"`
	Password PlaintextPassword `json:"password"`
}

func (e LoginLocalMessage) Type() string { return "identity.user.login" }

// LoginLocalHandler resolves an address to a user and drives the
// unauthenticated state through the password check.
type LoginLocalHandler struct {
	repo     RepositoryManager
	logger   Logger
	recorder activityRecorder
}

// LoginLocalOption customizes handler construction.
type LoginLocalOption func(*LoginLocalHandler)

// WithLoginLogger overrides the default logger.
func WithLoginLogger(l Logger) LoginLocalOption {
	return func(h *LoginLocalHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithLoginActivitySink sets the audit sink.
func WithLoginActivitySink(s ActivitySink) LoginLocalOption {
	return func(h *LoginLocalHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// NewLoginLocalHandler builds the login workflow.
func NewLoginLocalHandler(repo RepositoryManager, opts ...LoginLocalOption) *LoginLocalHandler {
	h := &LoginLocalHandler{
		repo:   repo,
		logger: defLogger{},
		recorder: activityRecorder{
			sink:   noopActivitySink{},
			logger: defLogger{},
			now:    time.Now,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// Execute authenticates the attempt. Unknown addresses and wrong passwords
// both surface as ErrInvalidPassword so the response does not leak which
// addresses exist. Mismatches are recorded as audit events, never logged as
// errors; process faults are both.
func (h *LoginLocalHandler) Execute(ctx context.Context, event LoginLocalMessage) (AuthenticatedUser, error) {
	select {
	case <-ctx.Done():
		return AuthenticatedUser{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginLocalHandler) execute(ctx context.Context, event LoginLocalMessage) (AuthenticatedUser, error) {
	emailRow, err := h.repo.Emails().GetByAddress(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			h.auditFailure(ctx, "", "unknown address")
			return AuthenticatedUser{}, ErrInvalidPassword
		}
		return AuthenticatedUser{}, wrapStore(err, "failed to look up email")
	}

	userRow, err := h.repo.Users().FindByID(ctx, emailRow.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			h.logger.Error("login found orphaned email row: %s", emailRow.ID)
			return AuthenticatedUser{}, ErrInvalidPassword
		}
		return AuthenticatedUser{}, wrapStore(err, "failed to look up user")
	}

	rec, err := h.repo.LocalAuths().GetByUserID(ctx, userRow.ID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// The account has no password credential.
			h.auditFailure(ctx, userRow.ID.String(), "no local auth")
			return AuthenticatedUser{}, ErrInvalidPassword
		}
		return AuthenticatedUser{}, wrapStore(err, "failed to look up local auth")
	}

	user, err := userRow.Unauthenticated().LogInLocal(rec, event.Password)
	if err != nil {
		if IsCredentialMismatch(err) {
			h.auditFailure(ctx, userRow.ID.String(), "password mismatch")
			return AuthenticatedUser{}, err
		}
		h.logger.Error("login verification process fault: %v", err)
		return AuthenticatedUser{}, err
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID().String(),
	})

	return user, nil
}

func (h *LoginLocalHandler) auditFailure(ctx context.Context, userID, reason string) {
	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}
