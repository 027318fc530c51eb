package accounts

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecentWindow is how far back Stats counts new registrations.
const RecentWindow = 7 * 24 * time.Hour

// Pagination describes a page of a user listing.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalUsers  int  `json:"totalUsers"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
	Limit       int  `json:"limit"`
}

type UserPage struct {
	Users      []*User    `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// DashboardStats is UserCounts plus the number of live connections.
type DashboardStats struct {
	UserCounts
	OnlineUsers int `json:"onlineUsers"`
}

// PresenceStatus reports whether an account holds a live connection.
type PresenceStatus struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ModerationService implements the administrator operations. Every status
// mutation goes through the state machine, and session notifications are
// sent from its after hooks, once the new status is stored.
type ModerationService struct {
	repos        RepositoryManager
	machine      UserStateMachine
	notifier     SessionNotifier
	presence     Presence
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

type ModerationOption func(*ModerationService)

func WithModerationNotifier(n SessionNotifier) ModerationOption {
	return func(s *ModerationService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithModerationPresence(p Presence) ModerationOption {
	return func(s *ModerationService) {
		if p != nil {
			s.presence = p
		}
	}
}

func WithModerationLogger(logger Logger) ModerationOption {
	return func(s *ModerationService) {
		s.logger = ResolveLogger(logger)
	}
}

func WithModerationActivitySink(sink ActivitySink) ModerationOption {
	return func(s *ModerationService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

func WithModerationClock(clock func() time.Time) ModerationOption {
	return func(s *ModerationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithModerationStateMachine replaces the default state machine.
func WithModerationStateMachine(machine UserStateMachine) ModerationOption {
	return func(s *ModerationService) {
		if machine != nil {
			s.machine = machine
		}
	}
}

func NewModerationService(repos RepositoryManager, opts ...ModerationOption) *ModerationService {
	s := &ModerationService{
		repos:        repos,
		notifier:     noopNotifier{},
		presence:     noPresence{},
		logger:       defLogger,
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.machine == nil {
		s.machine = NewUserStateMachine(repos.Users(),
			WithStateMachineLogger(s.logger),
			WithStateMachineActivitySink(s.activitySink),
			WithStateMachineClock(s.now),
		)
	}
	return s
}

// ListUsers returns one page of users matching q.
func (s *ModerationService) ListUsers(ctx context.Context, q ListUsersQuery) (*UserPage, error) {
	if err := q.Validate(); err != nil {
		return nil, NewValidationError(err)
	}
	q = q.Normalize()

	records, total, err := s.repos.Users().List(ctx, q.Filter())
	if err != nil {
		return nil, err
	}

	pages := int(math.Ceil(float64(total) / float64(q.Limit)))
	return &UserPage{
		Users: records,
		Pagination: Pagination{
			CurrentPage: q.Page,
			TotalPages:  pages,
			TotalUsers:  total,
			HasNextPage: q.Page < pages,
			HasPrevPage: q.Page > 1,
			Limit:       q.Limit,
		},
	}, nil
}

// GetUser returns the account with the given id.
func (s *ModerationService) GetUser(ctx context.Context, id string) (*User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return nil, err
	}
	return s.repos.Users().FindByID(ctx, uid)
}

// UpdateUser edits an account. Administrators cannot change their own role
// or status. A status change runs through the state machine.
func (s *ModerationService) UpdateUser(ctx context.Context, actor *User, id string, req UpdateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	var role UserRole
	if req.Role != nil {
		role, _ = ParseRole(*req.Role)
	}

	self := actor != nil && actor.ID == target.ID
	if self && req.Role != nil && role != target.Role {
		return nil, ErrCannotChangeOwnRole
	}
	if self && req.Status != nil && UserStatus(*req.Status) != target.Status {
		return nil, ErrCannotChangeOwnStatus
	}

	columns := []string{}
	err = s.repos.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if req.Email != nil && normalizeEmail(*req.Email) != target.Email {
			taken, err := s.repos.Users().EmailTakenTx(ctx, tx, *req.Email, target.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrEmailTaken
			}
			target.Email = normalizeEmail(*req.Email)
			columns = append(columns, "email")
		}
		if req.Name != nil {
			target.Name = strings.TrimSpace(*req.Name)
			columns = append(columns, "name")
		}
		if req.Role != nil && role != target.Role {
			target.Role = role
			columns = append(columns, "role")
		}
		if len(columns) == 0 {
			return nil
		}
		updated, err := s.repos.Users().UpdateProfileTx(ctx, tx, target, columns...)
		if err != nil {
			return err
		}
		*target = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Status != nil && UserStatus(*req.Status) != target.Status {
		if UserStatus(*req.Status) == UserStatusBanned && target.IsAdmin() {
			return nil, ErrCannotBanAdmin
		}
		target, err = s.transition(ctx, actor, target, UserStatus(*req.Status), DefaultBanReason)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("user updated", "user_id", target.ID.String(), "by", actorID(actor), "columns", columns)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		Actor:     ActorFromUser(actor),
		UserID:    target.ID.String(),
		Metadata:  map[string]any{"columns": columns},
	})
	return target, nil
}

// DeleteUser removes a non administrator account and closes its sessions.
func (s *ModerationService) DeleteUser(ctx context.Context, actor *User, id string) error {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return ErrCannotDeleteAdmin
	}
	if actor != nil && actor.ID == target.ID {
		return ErrCannotDeleteSelf
	}

	if err := s.repos.Users().Remove(ctx, target.ID); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", target.ID.String(), "by", actorID(actor))
	s.notifier.ForceLogout(ctx, target.ID.String(), target.Name, actorName(actor))
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     ActorFromUser(actor),
		UserID:    target.ID.String(),
	})
	return nil
}

// BanUser bans a non administrator account. An empty reason is replaced
// with DefaultBanReason.
func (s *ModerationService) BanUser(ctx context.Context, actor *User, id string, req BanRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.IsAdmin() {
		return nil, ErrCannotBanAdmin
	}
	if target.IsBanned() {
		return nil, ErrAlreadyBanned
	}

	return s.transition(ctx, actor, target, UserStatusBanned, req.ReasonOrDefault())
}

// UnbanUser restores a banned account to active.
func (s *ModerationService) UnbanUser(ctx context.Context, actor *User, id string) (*User, error) {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !target.IsBanned() {
		return nil, ErrNotBanned
	}

	return s.transition(ctx, actor, target, UserStatusActive, "")
}

// UpdateStatus sets the status of an account other than the caller's own.
func (s *ModerationService) UpdateStatus(ctx context.Context, actor *User, id string, req StatusRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.ID == target.ID {
		return nil, ErrCannotChangeOwnStatus
	}

	status := UserStatus(req.Status)
	if status == UserStatusBanned && target.IsAdmin() {
		return nil, ErrCannotBanAdmin
	}

	reason := strings.TrimSpace(req.Reason)
	if status == UserStatusBanned && reason == "" {
		reason = DefaultBanReason
	}
	return s.transition(ctx, actor, target, status, reason)
}

// ForceLogout closes every live session of an account.
func (s *ModerationService) ForceLogout(ctx context.Context, actor *User, id string) (*User, error) {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("force logout", "user_id", target.ID.String(), "by", actorID(actor))
	s.notifier.ForceLogout(ctx, target.ID.String(), target.Name, actorName(actor))
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventForceLogout,
		Actor:     ActorFromUser(actor),
		UserID:    target.ID.String(),
	})
	return target, nil
}

// SendMessage delivers an administrator message to the account's live sessions.
func (s *ModerationService) SendMessage(ctx context.Context, actor *User, id string, req MessageRequest) error {
	if err := req.Validate(); err != nil {
		return NewValidationError(err)
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	s.notifier.AdminMessage(ctx, target.ID.String(), actorName(actor), req.Message)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventAdminMessage,
		Actor:     ActorFromUser(actor),
		UserID:    target.ID.String(),
	})
	return nil
}

// Stats returns the dashboard counters.
func (s *ModerationService) Stats(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.repos.Users().Counts(ctx, s.now().Add(-RecentWindow))
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		UserCounts:  counts,
		OnlineUsers: s.presence.Count(),
	}, nil
}

// Presence reports whether the account currently holds a live connection.
func (s *ModerationService) Presence(ctx context.Context, id string) (*PresenceStatus, error) {
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PresenceStatus{
		UserID: target.ID.String(),
		Online: s.presence.IsPresent(RealtimeIdentity(target)),
	}, nil
}

func (s *ModerationService) transition(ctx context.Context, actor *User, target *User, status UserStatus, reason string) (*User, error) {
	opts := []TransitionOption{WithAfterTransitionHook(s.notifyTransition)}
	if reason != "" {
		opts = append(opts, WithTransitionReason(reason))
	}

	updated, err := s.machine.Transition(ctx, ActorFromUser(actor), target, status, opts...)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user status changed", "user_id", updated.ID.String(), "status", updated.Status, "by", actorID(actor))
	return updated, nil
}

func (s *ModerationService) notifyTransition(ctx context.Context, tc TransitionContext) error {
	userID := tc.User.ID.String()
	switch {
	case tc.To == UserStatusBanned:
		s.notifier.UserBanned(ctx, userID, tc.User.Name, tc.Actor.Name, tc.Reason)
	case tc.From == UserStatusBanned:
		s.notifier.UserUnbanned(ctx, userID, tc.User.Name, tc.Actor.Name)
	case tc.To == UserStatusInactive:
		s.notifier.ForceLogout(ctx, userID, tc.User.Name, tc.Actor.Name)
	}
	return nil
}

func parseUserID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryNotFound, ErrIdentityNotFound.Message).
			WithCode(ErrIdentityNotFound.Code).
			WithTextCode(ErrIdentityNotFound.TextCode)
	}
	return uid, nil
}

func actorID(actor *User) string {
	if actor == nil {
		return "system"
	}
	return actor.ID.String()
}

func actorName(actor *User) string {
	if actor == nil {
		return "system"
	}
	return actor.Name
}
