package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterLocalUserMessage carries the registration payload: an address plus
// the double-entered password.
type RegisterLocalUserMessage struct {
	Email           string            `json:"email"`
	Password        PlaintextPassword `json:"password"`
	ConfirmPassword PlaintextPassword `json:"confirm_password"`
}

func (e RegisterLocalUserMessage) Type() string { return "identity.user.register" }

// Registration is the durable outcome of a successful registration. Token is
// the plaintext verification token; its only destination is the outbound
// verification mail.
type Registration struct {
	User  UnauthenticatedUser
	Email UnverifiedEmail
	Token EmailToken
}

// RegisterLocalUserHandler creates the user, its password credential, and an
// unverified email in one transaction.
type RegisterLocalUserHandler struct {
	repo      RepositoryManager
	passwords PasswordValidator
	logger    Logger
	recorder  activityRecorder
}

// RegisterLocalUserOption customizes handler construction.
type RegisterLocalUserOption func(*RegisterLocalUserHandler)

// WithRegisterPasswordValidator overrides the password policy.
func WithRegisterPasswordValidator(v PasswordValidator) RegisterLocalUserOption {
	return func(h *RegisterLocalUserHandler) {
		h.passwords = v
	}
}

// WithRegisterLogger overrides the default logger.
func WithRegisterLogger(l Logger) RegisterLocalUserOption {
	return func(h *RegisterLocalUserHandler) {
		if l != nil {
			h.logger = l
			h.recorder.logger = l
		}
	}
}

// WithRegisterActivitySink sets the audit sink.
func WithRegisterActivitySink(s ActivitySink) RegisterLocalUserOption {
	return func(h *RegisterLocalUserHandler) {
		h.recorder.sink = normalizeActivitySink(s)
	}
}

// NewRegisterLocalUserHandler builds the registration workflow.
func NewRegisterLocalUserHandler(repo RepositoryManager, opts ...RegisterLocalUserOption) *RegisterLocalUserHandler {
	h := &RegisterLocalUserHandler{
		repo:      repo,
		passwords: NewPasswordValidator(),
		logger:    defLogger{},
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

// Execute validates the payload and persists user, local auth, and email
// atomically. A failure at any step leaves no partial account behind.
func (h *RegisterLocalUserHandler) Execute(ctx context.Context, event RegisterLocalUserMessage) (Registration, error) {
	select {
	case <-ctx.Done():
		return Registration{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterLocalUserHandler) execute(ctx context.Context, event RegisterLocalUserMessage) (Registration, error) {
	address := strings.TrimSpace(event.Email)
	if err := ValidateEmailAddress(address); err != nil {
		return Registration{}, err
	}

	validated, err := h.passwords.Validate(event.Password)
	if err != nil {
		return Registration{}, err
	}

	validated, err = ComparePasswords(validated, event.ConfirmPassword)
	if err != nil {
		return Registration{}, err
	}

	hash, err := HashPassword(validated)
	if err != nil {
		h.logger.Error("register could not hash password: %v", err)
		return Registration{}, err
	}

	var (
		user     *User
		emailRow *Email
		token    EmailToken
	)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error

		user, txErr = h.repo.Users().RegisterTx(ctx, tx, &User{})
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryConflict, "could not create user")
		}

		_, txErr = h.repo.LocalAuths().CreateTx(ctx, tx, &LocalAuth{
			ID:           uuid.New(),
			UserID:       user.ID,
			PasswordHash: hash,
		})
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryConflict, "could not create local auth")
		}

		emailRow, token, txErr = NewEmail(address, user.Unauthenticated())
		if txErr != nil {
			return txErr
		}

		emailRow, txErr = h.repo.Emails().CreateTx(ctx, tx, emailRow)
		if txErr != nil {
			return goerrors.Wrap(txErr, goerrors.CategoryConflict, "could not create email")
		}

		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return Registration{}, richErr
		}
		return Registration{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute registration")
	}

	h.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email_id": emailRow.ID.String(),
		},
	})

	unverified, ok := emailRow.ToVerified().(UnverifiedEmail)
	if !ok {
		// A freshly inserted email cannot be verified.
		return Registration{}, annotate(ErrVerifyProcess, map[string]any{
			"reason": "new email row reported verified",
		})
	}

	return Registration{
		User:  user.Unauthenticated(),
		Email: unverified,
		Token: token,
	}, nil
}
