package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// defaultResetTTL is the validity window of a reset request.
const defaultResetTTL = 24 * time.Hour

// FinalizePasswordResetMessage carries the second half of a reset: the
// request id and token from the reset mail plus the double-entered new
// password.
type FinalizePasswordResetMessage struct {
	ResetID         uuid.UUID         `json:"reset_id"`
	Token           EmailToken        `json:"token"`
	Password        PlaintextPassword `json:"password"`
	ConfirmPassword PlaintextPassword `json:"confirm_password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "identity.password_reset.finalize" }

// FinalizePasswordResetHandler verifies a reset token and replaces the
// user's password credential.
type FinalizePasswordResetHandler struct {
	repo      RepositoryManager
	passwords PasswordValidator
	ttl       time.Duration
	logger    Logger
	recorder  activityRecorder
	now       func() time.Time
}

// FinalizePasswordResetOption customizes handler construction.
type FinalizePasswordResetOption func(*FinalizePasswordResetHandler)

// WithResetPasswordValidator overrides the password policy.
func WithResetPasswordValidator(v PasswordValidator) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		h.passwords = v
	}
}

// WithResetTTL overrides the default 24h validity window.
func WithResetTTL(ttl time.Duration) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// WithResetLogger overrides the default logger.
func WithResetLogger(l Logger) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithResetActivitySink sets the audit sink.
func WithResetActivitySink(s ActivitySink) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// WithResetClock injects a custom clock (useful for expiry tests).
func WithResetClock(clock func() time.Time) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewFinalizePasswordResetHandler builds the reset-finalization workflow.
func NewFinalizePasswordResetHandler(repo RepositoryManager, opts ...FinalizePasswordResetOption) *FinalizePasswordResetHandler {
	h := &FinalizePasswordResetHandler{
		repo:      repo,
		passwords: NewPasswordValidator(),
		ttl:       defaultResetTTL,
		logger:    defLogger{},
		recorder: activityRecorder{
			sink:   noopActivitySink{},
			logger: defLogger{},
			now:    time.Now,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// Execute consumes the reset request and swaps the password hash in one
// transaction. A consumed or expired request fails hard; the credential is
// untouched on any failure.
func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	validated, err := h.passwords.Validate(event.Password)
	if err != nil {
		return err
	}

	validated, err = ComparePasswords(validated, event.ConfirmPassword)
	if err != nil {
		return err
	}

	reset, err := h.repo.PasswordResets().FindByID(ctx, event.ResetID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return err
		}
		return wrapStore(err, "failed to look up password reset")
	}

	if reset.Status != ResetStatusRequested {
		h.auditFailure(ctx, reset, "already used")
		return annotate(ErrResetConsumed, map[string]any{
			"id": reset.ID.String(),
		})
	}

	if h.now().Sub(reset.CreatedAt) > h.ttl {
		h.auditFailure(ctx, reset, "expired")
		return annotate(ErrResetExpired, map[string]any{
			"id": reset.ID.String(),
		})
	}

	if err := reset.TokenHash.Verify(event.Token); err != nil {
		if IsCredentialMismatch(err) {
			h.auditFailure(ctx, reset, "token mismatch")
			return err
		}
		h.logger.Error("password reset verification process fault: %v", err)
		return err
	}

	hash, err := HashPassword(validated)
	if err != nil {
		h.logger.Error("password reset could not hash password: %v", err)
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rec, txErr := h.repo.LocalAuths().GetByUserIDTx(ctx, tx, reset.UserID)
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryInternal, "could not load local auth")
		}

		rec.PasswordHash = hash
		if _, txErr = h.repo.LocalAuths().UpdateTx(ctx, tx, rec); txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryInternal, "could not update password")
		}

		return h.repo.PasswordResets().MarkCompletedTx(ctx, tx, reset.ID)
	})
	if err != nil {
		return err
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		UserID:    reset.UserID.String(),
		Metadata: map[string]any{
			"reset_id": reset.ID.String(),
		},
	})

	return nil
}

func (h *FinalizePasswordResetHandler) auditFailure(ctx context.Context, reset *PasswordReset, reason string) {
	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetFailure,
		UserID:    reset.UserID.String(),
		Metadata: map[string]any{
			"reset_id": reset.ID.String(),
			"reason":   reason,
		},
	})
}
