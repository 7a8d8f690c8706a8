package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported audit categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered ActivityEventType = "identity.user.registered"
	ActivityEventLoginSuccess   ActivityEventType = "identity.login.success"
	ActivityEventLoginFailure   ActivityEventType = "identity.login.failure"
	ActivityEventEmailVerified  ActivityEventType = "identity.email.verified"
	ActivityEventRoleGranted    ActivityEventType = "identity.role.granted"
	ActivityEventRoleRevoked    ActivityEventType = "identity.role.revoked"
	ActivityEventUserBanned     ActivityEventType = "identity.user.banned"

	ActivityEventVerificationRequested ActivityEventType = "identity.email.verification_requested"
	ActivityEventPasswordResetInit     ActivityEventType = "identity.password_reset.requested"
	ActivityEventPasswordResetSuccess  ActivityEventType = "identity.password_reset.success"
	ActivityEventPasswordResetFailure  ActivityEventType = "identity.password_reset.failure"
)

// ActivityEvent captures audit-friendly information about an action. Failed
// password checks are recorded here and only here; they are not operational
// errors.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing purposes. Sinks run
// best-effort: failures are logged, never propagated into the workflow that
// emitted the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		r.logger.Error("activity sink error: %v", err)
	}
}
