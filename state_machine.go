package accounts

import (
	"context"
	"slices"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

func invalidTransition(from, to UserStatus, reason string) error {
	metadata := map[string]any{"from": from, "to": to}
	if reason != "" {
		metadata["reason"] = reason
	}
	return goerrors.New(ErrInvalidTransition.Message, goerrors.CategoryValidation).
		WithTextCode(textCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(metadata)
}

// IsInvalidTransition reports whether err refused a status change.
func IsInvalidTransition(err error) bool {
	return HasTextCode(err, textCodeInvalidTransition)
}

// statusGraph lists the statuses reachable from each status. A banned
// account can only be reinstated.
var statusGraph = map[UserStatus][]UserStatus{
	UserStatusActive:   {UserStatusBanned, UserStatusInactive},
	UserStatusInactive: {UserStatusActive, UserStatusBanned},
	UserStatusBanned:   {UserStatusActive},
}

// ActorRef identifies who triggered a change.
type ActorRef struct {
	ID   string
	Type string
	Name string
}

// ActorFromUser returns the actor reference of an authenticated user.
func ActorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "system", Name: "system"}
	}
	return ActorRef{ID: user.ID.String(), Type: string(user.Role), Name: user.Name}
}

// TransitionContext describes a status change to the hooks.
type TransitionContext struct {
	Actor  ActorRef
	User   *User
	From   UserStatus
	To     UserStatus
	Reason string
}

// TransitionHook runs around a status change. Before hooks can veto it;
// after hooks see the stored result and their errors are only logged.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

type TransitionOption func(*transition)

type transition struct {
	reason string
	before []TransitionHook
	after  []TransitionHook
}

// WithTransitionReason sets the reason stored with a ban and reported to
// live sessions.
func WithTransitionReason(reason string) TransitionOption {
	return func(t *transition) {
		t.reason = reason
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(t *transition) {
		if h != nil {
			t.before = append(t.before, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update is stored.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(t *transition) {
		if h != nil {
			t.after = append(t.after, h)
		}
	}
}

// UserStateMachine moves accounts between statuses.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CanTransition(from, to UserStatus) bool
}

type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects the clock used for ban timestamps.
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activity = normalizeActivitySink(sink)
	}
}

func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.logger = ResolveLogger(logger)
	}
}

type userStateMachine struct {
	users    Users
	now      func() time.Time
	activity ActivitySink
	logger   Logger
}

// NewUserStateMachine returns a state machine that persists through users.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users:    users,
		now:      time.Now,
		activity: noopActivitySink{},
		logger:   defLogger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

func (sm *userStateMachine) CanTransition(from, to UserStatus) bool {
	return slices.Contains(statusGraph[from], to)
}

// Transition stores the new status of user and updates user in place.
// Moving to the current status is a no-op and runs no hooks.
func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, invalidTransition("", target, "user is nil")
	}
	if !target.Valid() {
		return nil, invalidTransition(user.Status, target, "unknown target status")
	}

	user.EnsureStatus()
	from := user.Status
	if from == target {
		return user, nil
	}
	if !sm.CanTransition(from, target) {
		return nil, invalidTransition(from, target, "")
	}

	t := &transition{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	tc := TransitionContext{Actor: actor, User: user, From: from, To: target, Reason: t.reason}
	for _, hook := range t.before {
		if err := hook(ctx, tc); err != nil {
			return nil, err
		}
	}

	updated, err := sm.users.UpdateStatus(ctx, user.ID, target, sm.statusColumns(tc)...)
	if err != nil {
		return nil, err
	}
	*user = *updated

	for _, hook := range t.after {
		if err := hook(ctx, tc); err != nil {
			sm.logger.Error("user transition after hook failed",
				"user_id", user.ID.String(),
				"from", from,
				"to", target,
				"error", err,
			)
		}
	}

	sm.record(ctx, tc)
	return user, nil
}

func (sm *userStateMachine) statusColumns(tc TransitionContext) []StatusUpdateOption {
	switch {
	case tc.To == UserStatusBanned:
		return []StatusUpdateOption{WithBanDetails(tc.Reason, tc.Actor.ID, sm.now())}
	case tc.From == UserStatusBanned:
		return []StatusUpdateOption{WithClearedBan()}
	}
	return nil
}

func (sm *userStateMachine) record(ctx context.Context, tc TransitionContext) {
	actor := tc.Actor
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	var metadata map[string]any
	if tc.Reason != "" {
		metadata = map[string]any{"reason": tc.Reason}
	}

	recordActivity(ctx, sm.activity, sm.logger, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     tc.User.ID.String(),
		FromStatus: tc.From,
		ToStatus:   tc.To,
		OccurredAt: sm.now(),
		Metadata:   metadata,
	})
}
