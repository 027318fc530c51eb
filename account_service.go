package accounts

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountService implements the self service operations of an account
// holder: registration, login, profile and password management.
type AccountService struct {
	repos        RepositoryManager
	auther       *Auther
	logger       Logger
	activitySink ActivitySink
	bcryptCost   int
}

type AccountServiceOption func(*AccountService)

func WithAccountLogger(logger Logger) AccountServiceOption {
	return func(s *AccountService) {
		s.logger = ResolveLogger(logger)
	}
}

func WithAccountActivitySink(sink ActivitySink) AccountServiceOption {
	return func(s *AccountService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithBcryptCost sets the cost used to hash new passwords.
func WithBcryptCost(cost int) AccountServiceOption {
	return func(s *AccountService) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

func NewAccountService(repos RepositoryManager, auther *Auther, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		repos:        repos,
		auther:       auther,
		logger:       defLogger,
		activitySink: noopActivitySink{},
		bcryptCost:   passwordHashCost(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register creates an active user account and opens a user session for it.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	hash, err := HashPasswordWithCost(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	var created *User
	err = s.repos.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		taken, err := s.repos.Users().EmailTakenTx(ctx, tx, req.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		created, err = s.repos.Users().RegisterTx(ctx, tx, &User{
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			PasswordHash: hash,
			Role:         RoleUser,
			Status:       UserStatusActive,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", created.ID.String(), "email", created.Email)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorFromUser(created),
		UserID:    created.ID.String(),
	})

	return s.auther.IssueUserSession(ctx, created)
}

// Login authenticates an account holder in the user keyspace.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}
	return s.auther.LoginUser(ctx, req.Email, req.Password)
}

// Profile returns the account with the given id.
func (s *AccountService) Profile(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repos.Users().FindByID(ctx, id)
}

// UpdateProfile writes the profile fields present in req.
func (s *AccountService) UpdateProfile(ctx context.Context, user *User, req UpdateProfileRequest) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	columns := []string{}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
		columns = append(columns, "name")
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
		columns = append(columns, "phone")
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
		columns = append(columns, "bio")
	}
	if req.Avatar != nil {
		user.Avatar = strings.TrimSpace(*req.Avatar)
		columns = append(columns, "avatar")
	}

	updated, err := s.repos.Users().UpdateProfile(ctx, user, columns...)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		Actor:     ActorFromUser(updated),
		UserID:    updated.ID.String(),
		Metadata:  map[string]any{"columns": columns},
	})
	return updated, nil
}

// ChangePassword replaces the password of user after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, user *User, req ChangePasswordRequest) error {
	if user == nil {
		return ErrIdentityNotFound
	}
	if err := req.Validate(); err != nil {
		return NewValidationError(err)
	}

	if err := ComparePasswordAndHash(req.CurrentPassword, user.PasswordHash); err != nil {
		return ErrCurrentPasswordInvalid
	}

	hash, err := HashPasswordWithCost(req.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.repos.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	user.PasswordHash = hash

	s.logger.Info("password changed", "user_id", user.ID.String())
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
	})
	return nil
}

// Logout records the logout. Tokens are stateless, clients discard them.
func (s *AccountService) Logout(ctx context.Context, user *User) {
	if user == nil {
		return
	}
	s.logger.Info("user logged out", "user_id", user.ID.String())
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
	})
}
