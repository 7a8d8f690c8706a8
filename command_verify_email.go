package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// VerifyEmailMessage carries a verification attempt: the address plus the
// plaintext token from the verification link.
type VerifyEmailMessage struct {
	Email string     `json:"email"`
	Token EmailToken `json:"token"`
}

func (e VerifyEmailMessage) Type() string { return "identity.email.verify" }

// VerifyEmailHandler resolves the address, checks the token, and commits the
// verification transactionally.
type VerifyEmailHandler struct {
	repo     RepositoryManager
	logger   Logger
	recorder activityRecorder
}

// VerifyEmailOption customizes handler construction.
type VerifyEmailOption func(*VerifyEmailHandler)

// WithVerifyLogger overrides the default logger.
func WithVerifyLogger(l Logger) VerifyEmailOption {
	return func(h *VerifyEmailHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithVerifyActivitySink sets the audit sink.
func WithVerifyActivitySink(s ActivitySink) VerifyEmailOption {
	return func(h *VerifyEmailHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// NewVerifyEmailHandler builds the verification workflow.
func NewVerifyEmailHandler(repo RepositoryManager, opts ...VerifyEmailOption) *VerifyEmailHandler {
	h := &VerifyEmailHandler{
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

// Execute runs the verification. Re-verifying an already verified email is a
// hard failure, never a silent success.
func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) (AuthenticatedUser, VerifiedEmail, error) {
	select {
	case <-ctx.Done():
		return AuthenticatedUser{}, VerifiedEmail{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) (AuthenticatedUser, VerifiedEmail, error) {
	emailRow, err := h.repo.Emails().GetByAddress(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return AuthenticatedUser{}, VerifiedEmail{}, err
		}
		return AuthenticatedUser{}, VerifiedEmail{}, wrapStore(err, "failed to look up email")
	}

	unverifiedEmail, ok := emailRow.ToVerified().(UnverifiedEmail)
	if !ok {
		return AuthenticatedUser{}, VerifiedEmail{}, annotate(ErrEmailAlreadyVerified, map[string]any{
			"id": emailRow.ID.String(),
		})
	}

	userRow, err := h.repo.Users().FindByID(ctx, emailRow.UserID)
	if err != nil {
		return AuthenticatedUser{}, VerifiedEmail{}, wrapStore(err, "failed to look up user")
	}

	split, err := userRow.Unauthenticated().CheckVerified(ctx, h.repo.Authz())
	if err != nil {
		return AuthenticatedUser{}, VerifiedEmail{}, err
	}

	var unverifiedUser UnverifiedUser
	switch state := split.(type) {
	case UnverifiedUser:
		unverifiedUser = state
	case VerifiedUser:
		// The user verified through another address; this one keeps its
		// token until verified on its own.
		unverifiedUser = UnverifiedUser{
			id:        state.ID(),
			createdAt: state.CreatedAt(),
		}
	}

	pending, err := unverifiedUser.Verify(unverifiedEmail, event.Token)
	if err != nil {
		if IsProcessFault(err) {
			h.logger.Error("email verification process fault: %v", err)
		}
		return AuthenticatedUser{}, VerifiedEmail{}, err
	}

	user, verified, err := pending.Commit(ctx, h.repo)
	if err != nil {
		return AuthenticatedUser{}, VerifiedEmail{}, err
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		UserID:    user.ID().String(),
		Metadata: map[string]any{
			"email_id": verified.EmailID().String(),
		},
	})

	return user, verified, nil
}
