package accounts

import (
	"context"
	"time"
)

// Session is the result of a successful login: the account and a token from
// the keyspace that matches the login route.
type Session struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	Keyspace  string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Auther logs users and administrators in and issues their tokens.
type Auther struct {
	provider     *UserProvider
	userTokens   TokenService
	adminTokens  TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider *UserProvider, userTokens, adminTokens TokenService) *Auther {
	return &Auther{
		provider:     provider,
		userTokens:   userTokens,
		adminTokens:  adminTokens,
		logger:       defLogger,
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = ResolveLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// UserTokens returns the user keyspace token service.
func (s *Auther) UserTokens() TokenService {
	return s.userTokens
}

// AdminTokens returns the admin keyspace token service.
func (s *Auther) AdminTokens() TokenService {
	return s.adminTokens
}

// LoginUser checks credentials and issues a user keyspace token. Banned and
// inactive accounts are refused.
func (s *Auther) LoginUser(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Info("Login verify identity error", "email", email, "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	if err := ensureUserActive(user); err != nil {
		s.logger.Warn("Login blocked due to user status", "user_id", user.ID.String(), "status", user.Status)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorFromUser(user), user.ID.String(), map[string]any{
			"status": user.Status,
		})
		return nil, err
	}

	return s.openSession(ctx, user, s.userTokens)
}

// LoginAdmin checks credentials of an administrator and issues an admin
// keyspace token.
func (s *Auther) LoginAdmin(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email":  email,
			"admin":  true,
			"error":  err.Error(),
			"reason": "credentials",
		})
		return nil, ErrInvalidAdminCredentials
	}

	if !user.IsAdmin() {
		s.logger.Warn("Admin login attempted by non admin", "user_id", user.ID.String())
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorFromUser(user), user.ID.String(), map[string]any{
			"admin":  true,
			"reason": "role",
		})
		return nil, ErrInvalidAdminCredentials
	}

	if err := ensureUserActive(user); err != nil {
		return nil, err
	}

	return s.openSession(ctx, user, s.adminTokens)
}

// IssueUserSession issues a user keyspace token without checking a password,
// for accounts that were just created.
func (s *Auther) IssueUserSession(ctx context.Context, user *User) (*Session, error) {
	return s.openSession(ctx, user, s.userTokens)
}

func (s *Auther) openSession(ctx context.Context, user *User, tokens TokenService) (*Session, error) {
	token, err := tokens.Generate(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("Login failed to generate token", "user_id", user.ID.String(), "keyspace", tokens.Keyspace(), "error", err)
		return nil, err
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	s.provider.TrackLogin(ctx, user)
	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorFromUser(user), user.ID.String(), map[string]any{
		"keyspace": tokens.Keyspace(),
	})

	return &Session{
		User:      user,
		Token:     token,
		Keyspace:  tokens.Keyspace(),
		ExpiresAt: claims.Expires(),
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func ensureUserActive(user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}
	user.EnsureStatus()
	switch user.Status {
	case UserStatusActive:
		return nil
	case UserStatusBanned:
		return NewAccountBannedError("Account has been banned", user.BanReason)
	default:
		return ErrAccountInactive
	}
}
