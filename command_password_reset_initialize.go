package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InitializePasswordResetMessage carries a reset request for an address.
type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "identity.password_reset.init" }

// PasswordResetRequest is the outcome of a successful initialization. Token
// is the plaintext reset token; its only destination is the reset mail.
// Requested reports whether a reset row was actually created: unknown
// addresses come back with Requested false so the response shape does not
// leak which addresses exist.
type PasswordResetRequest struct {
	ResetID   uuid.UUID
	Token     EmailToken
	Requested bool
}

// InitializePasswordResetHandler creates a one-shot reset request for the
// user owning an address.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	logger   Logger
	recorder activityRecorder
}

// InitializePasswordResetOption customizes handler construction.
type InitializePasswordResetOption func(*InitializePasswordResetHandler)

// WithResetInitLogger overrides the default logger.
func WithResetInitLogger(l Logger) InitializePasswordResetOption {
	return func(h *InitializePasswordResetHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithResetInitActivitySink sets the audit sink.
func WithResetInitActivitySink(s ActivitySink) InitializePasswordResetOption {
	return func(h *InitializePasswordResetHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// NewInitializePasswordResetHandler builds the reset-initialization workflow.
func NewInitializePasswordResetHandler(repo RepositoryManager, opts ...InitializePasswordResetOption) *InitializePasswordResetHandler {
	h := &InitializePasswordResetHandler{
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

// Execute resolves the address and, when it exists, persists a reset request
// carrying a fresh token hash. Unknown addresses return a non-requested
// result instead of an error.
func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) (PasswordResetRequest, error) {
	select {
	case <-ctx.Done():
		return PasswordResetRequest{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) (PasswordResetRequest, error) {
	emailRow, err := h.repo.Emails().GetByAddress(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return PasswordResetRequest{Requested: false}, nil
		}
		return PasswordResetRequest{}, wrapStore(err, "failed to look up email")
	}

	token, hash, err := CreateEmailToken()
	if err != nil {
		h.logger.Error("password reset could not create token: %v", err)
		return PasswordResetRequest{}, err
	}

	reset := &PasswordReset{
		ID:        uuid.New(),
		UserID:    emailRow.UserID,
		TokenHash: hash,
		Status:    ResetStatusRequested,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, txErr := h.repo.PasswordResets().CreateTx(ctx, tx, reset)
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryInternal, "could not create password reset")
		}
		return nil
	})
	if err != nil {
		return PasswordResetRequest{}, err
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetInit,
		UserID:    emailRow.UserID.String(),
		Metadata: map[string]any{
			"reset_id": reset.ID.String(),
		},
	})

	return PasswordResetRequest{
		ResetID:   reset.ID,
		Token:     token,
		Requested: true,
	}, nil
}
