package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RequestVerificationMessage asks for a fresh verification token for an
// address, typically because the original mail never arrived.
type RequestVerificationMessage struct {
	Email string `json:"email"`
}

func (e RequestVerificationMessage) Type() string { return "identity.email.request_verification" }

// RequestVerificationHandler rotates the verification token of an unverified
// email. The previous token stops working the moment the new hash lands.
type RequestVerificationHandler struct {
	repo     RepositoryManager
	logger   Logger
	recorder activityRecorder
}

// RequestVerificationOption customizes handler construction.
type RequestVerificationOption func(*RequestVerificationHandler)

// WithRequestVerificationLogger overrides the default logger.
func WithRequestVerificationLogger(l Logger) RequestVerificationOption {
	return func(h *RequestVerificationHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithRequestVerificationActivitySink sets the audit sink.
func WithRequestVerificationActivitySink(s ActivitySink) RequestVerificationOption {
	return func(h *RequestVerificationHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// NewRequestVerificationHandler builds the token re-request workflow.
func NewRequestVerificationHandler(repo RepositoryManager, opts ...RequestVerificationOption) *RequestVerificationHandler {
	h := &RequestVerificationHandler{
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

// Execute rotates the token. Requesting a token for a verified address is
// the same hard failure as re-verifying it.
func (h *RequestVerificationHandler) Execute(ctx context.Context, event RequestVerificationMessage) (EmailToken, error) {
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestVerificationHandler) execute(ctx context.Context, event RequestVerificationMessage) (EmailToken, error) {
	emailRow, err := h.repo.Emails().GetByAddress(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return "", err
		}
		return "", wrapStore(err, "failed to look up email")
	}

	if emailRow.Verified {
		return "", annotate(ErrEmailAlreadyVerified, map[string]any{
			"id": emailRow.ID.String(),
		})
	}

	token, hash, err := CreateEmailToken()
	if err != nil {
		h.logger.Error("verification request could not create token: %v", err)
		return "", err
	}

	emailRow.VerificationTokenHash = &hash

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, txErr := h.repo.Emails().UpdateTx(ctx, tx, emailRow)
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryInternal, "could not rotate verification token")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventVerificationRequested,
		UserID:    emailRow.UserID.String(),
		Metadata: map[string]any{
			"email_id": emailRow.ID.String(),
		},
	})

	return token, nil
}
