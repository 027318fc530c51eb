package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts/realtime"
)

// Logger is the structured logger used across the package. Arguments are
// alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity is the authenticated principal returned by an IdentityProvider.
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
	Status() UserStatus
}

// Config holds the settings the package needs to issue and check tokens.
type Config interface {
	GetUserSigningKey() string
	GetAdminSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetBcryptCost() int
}

// IdentityProvider resolves credentials to identities.
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// SessionNotifier is told about committed account mutations that live
// sessions must learn about. realtime.Bridge implements it.
type SessionNotifier interface {
	UserBanned(ctx context.Context, userID, userName, actor, reason string)
	UserUnbanned(ctx context.Context, userID, userName, actor string)
	ForceLogout(ctx context.Context, userID, userName, actor string)
	AdminMessage(ctx context.Context, userID, from, message string)
}

var _ SessionNotifier = (*realtime.Bridge)(nil)

// Presence reports which users hold a live connection. realtime.Registry
// implements it.
type Presence interface {
	IsPresent(identity realtime.Identity) bool
	Count() int
}

var _ Presence = (*realtime.Registry)(nil)

type noopNotifier struct{}

func (noopNotifier) UserBanned(context.Context, string, string, string, string) {}
func (noopNotifier) UserUnbanned(context.Context, string, string, string)       {}
func (noopNotifier) ForceLogout(context.Context, string, string, string)        {}
func (noopNotifier) AdminMessage(context.Context, string, string, string)       {}

type noPresence struct{}

func (noPresence) IsPresent(realtime.Identity) bool { return false }
func (noPresence) Count() int                       { return 0 }
