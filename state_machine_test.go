package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-accounts"
)

// statusUsers fails UpdateStatus and delegates everything else.
type statusUsers struct {
	accounts.Users
	err   error
	calls int
}

func (s *statusUsers) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.UserStatus, opts ...accounts.StatusUpdateOption) (*accounts.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.Users.UpdateStatus(ctx, id, status, opts...)
}

func TestUserStateMachineBanRecordsDetails(t *testing.T) {
	repos := newTestRepos(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	admin := createUser(t, repos.Users(), "Admin", "admin@example.com", accounts.RoleAdmin, accounts.UserStatusActive)
	user := createUser(t, repos.Users(), "Jamie", "jamie@example.com", accounts.RoleUser, accounts.UserStatusActive)

	sm := accounts.NewUserStateMachine(repos.Users(), accounts.WithStateMachineClock(func() time.Time { return now }))

	result, err := sm.Transition(context.Background(), accounts.ActorFromUser(admin), user, accounts.UserStatusBanned,
		accounts.WithTransitionReason("spam"),
	)
	require.NoError(t, err)
	assert.True(t, result.IsBanned())
	assert.Equal(t, "spam", result.BanReason)
	assert.Equal(t, admin.ID.String(), result.BannedBy)
	require.NotNil(t, result.BannedAt)
	assert.True(t, now.Equal(*result.BannedAt))

	status, err := repos.Users().AccountStatus(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "banned", status)
}

func TestUserStateMachineUnbanClearsDetails(t *testing.T) {
	repos := newTestRepos(t)
	user := createUser(t, repos.Users(), "Jamie", "jamie@example.com", accounts.RoleUser, accounts.UserStatusActive)
	sm := accounts.NewUserStateMachine(repos.Users())

	_, err := sm.Transition(context.Background(), accounts.ActorRef{ID: "admin"}, user, accounts.UserStatusBanned,
		accounts.WithTransitionReason("spam"),
	)
	require.NoError(t, err)

	result, err := sm.Transition(context.Background(), accounts.ActorRef{ID: "admin"}, user, accounts.UserStatusActive)
	require.NoError(t, err)
	assert.True(t, result.IsActive())
	assert.Empty(t, result.BanReason)
	assert.Empty(t, result.BannedBy)
	assert.Nil(t, result.BannedAt)
}

func TestUserStateMachineRejectsInvalidTransition(t *testing.T) {
	users := &statusUsers{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusBanned}

	sm := accounts.NewUserStateMachine(users)

	_, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusInactive)
	require.Error(t, err)
	assert.True(t, accounts.IsInvalidTransition(err))
	assert.Equal(t, 0, users.calls)

	_, err = sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatus("archived"))
	assert.True(t, accounts.IsInvalidTransition(err))
}

func TestUserStateMachineSameStatusIsNoop(t *testing.T) {
	users := &statusUsers{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}

	sm := accounts.NewUserStateMachine(users)

	result, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusActive)
	require.NoError(t, err)
	assert.Same(t, user, result)
	assert.Equal(t, 0, users.calls)
}

func TestUserStateMachineCanTransition(t *testing.T) {
	sm := accounts.NewUserStateMachine(nil)

	cases := []struct {
		from, to accounts.UserStatus
		allowed  bool
	}{
		{accounts.UserStatusActive, accounts.UserStatusBanned, true},
		{accounts.UserStatusActive, accounts.UserStatusInactive, true},
		{accounts.UserStatusInactive, accounts.UserStatusActive, true},
		{accounts.UserStatusInactive, accounts.UserStatusBanned, true},
		{accounts.UserStatusBanned, accounts.UserStatusActive, true},
		{accounts.UserStatusBanned, accounts.UserStatusInactive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, sm.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestUserStateMachineHooksRunAroundPersistence(t *testing.T) {
	repos := newTestRepos(t)
	user := createUser(t, repos.Users(), "Jamie", "jamie@example.com", accounts.RoleUser, accounts.UserStatusActive)
	sm := accounts.NewUserStateMachine(repos.Users())

	var before, after string
	_, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusInactive,
		accounts.WithBeforeTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
			before, _ = repos.Users().AccountStatus(ctx, tc.User.ID.String())
			return nil
		}),
		accounts.WithAfterTransitionHook(func(ctx context.Context, tc accounts.TransitionContext) error {
			after, _ = repos.Users().AccountStatus(ctx, tc.User.ID.String())
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "active", before)
	assert.Equal(t, "inactive", after)
}

func TestUserStateMachineBeforeHookAborts(t *testing.T) {
	users := &statusUsers{}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}
	sm := accounts.NewUserStateMachine(users)

	boom := errors.New("nope")
	_, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusBanned,
		accounts.WithBeforeTransitionHook(func(context.Context, accounts.TransitionContext) error { return boom }),
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, users.calls)
}

func TestUserStateMachineAfterHookErrorIsLogged(t *testing.T) {
	repos := newTestRepos(t)
	user := createUser(t, repos.Users(), "Jamie", "jamie@example.com", accounts.RoleUser, accounts.UserStatusActive)
	sm := accounts.NewUserStateMachine(repos.Users())

	result, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusBanned,
		accounts.WithAfterTransitionHook(func(context.Context, accounts.TransitionContext) error {
			return errors.New("notify failed")
		}),
	)
	require.NoError(t, err)
	assert.True(t, result.IsBanned())
}

func TestUserStateMachineStoreErrorSkipsAfterHooks(t *testing.T) {
	boom := errors.New("db down")
	users := &statusUsers{err: boom}
	user := &accounts.User{ID: uuid.New(), Status: accounts.UserStatusActive}
	sm := accounts.NewUserStateMachine(users)

	called := false
	_, err := sm.Transition(context.Background(), accounts.ActorRef{}, user, accounts.UserStatusBanned,
		accounts.WithAfterTransitionHook(func(context.Context, accounts.TransitionContext) error {
			called = true
			return nil
		}),
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
	assert.Equal(t, accounts.UserStatusActive, user.Status)
}

func TestUserStateMachineRecordsActivity(t *testing.T) {
	repos := newTestRepos(t)
	user := createUser(t, repos.Users(), "Jamie", "jamie@example.com", accounts.RoleUser, accounts.UserStatusActive)
	activity := &activityRecorder{}
	sm := accounts.NewUserStateMachine(repos.Users(), accounts.WithStateMachineActivitySink(activity))

	_, err := sm.Transition(context.Background(), accounts.ActorRef{ID: "admin"}, user, accounts.UserStatusBanned,
		accounts.WithTransitionReason("spam"),
	)
	require.NoError(t, err)

	require.Len(t, activity.events, 1)
	event := activity.events[0]
	assert.Equal(t, accounts.ActivityEventUserStatusChanged, event.EventType)
	assert.Equal(t, accounts.UserStatusActive, event.FromStatus)
	assert.Equal(t, accounts.UserStatusBanned, event.ToStatus)
	assert.Equal(t, "spam", event.Metadata["reason"])
}
