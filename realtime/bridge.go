package realtime

import (
	"context"
	"time"
)

const (
	MessageBanned     = "Your account has been banned. You will be logged out."
	MessageUnbanned   = "Your account has been unbanned. You can now use the application normally."
	MessageLoggedOut  = "Session ended. You have been logged out."
	StatusValueActive = "active"
	StatusValueBanned = "banned"
)

// Bridge turns committed account mutations into events. Call it only after
// the mutation is durable; it never reports failure.
type Bridge struct {
	publisher Publisher
	now       func() time.Time
	logger    Logger
}

// BridgeOption customizes a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeClock injects the clock used to stamp events.
func WithBridgeClock(clock func() time.Time) BridgeOption {
	return func(b *Bridge) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(logger Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = resolveLogger(logger)
	}
}

// NewBridge returns a Bridge publishing to publisher.
func NewBridge(publisher Publisher, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		publisher: publisher,
		now:       time.Now,
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// UserBanned announces a ban to the user and a status change to admins.
func (b *Bridge) UserBanned(ctx context.Context, userID, userName, actor, reason string) {
	now := b.now()
	b.publish(UserBanned{
		UserID:    userID,
		UserName:  userName,
		BannedBy:  actor,
		Reason:    reason,
		Message:   MessageBanned,
		Timestamp: now,
	})
	b.publish(StatusChanged{
		Change:    KindUserBanned,
		UserID:    userID,
		UserName:  userName,
		Status:    StatusValueBanned,
		UpdatedBy: actor,
		Timestamp: now,
	})
}

// UserUnbanned announces a lifted ban to the user and a status change to admins.
func (b *Bridge) UserUnbanned(ctx context.Context, userID, userName, actor string) {
	now := b.now()
	b.publish(UserUnbanned{
		UserID:     userID,
		UserName:   userName,
		UnbannedBy: actor,
		Message:    MessageUnbanned,
		Timestamp:  now,
	})
	b.publish(StatusChanged{
		Change:    KindUserUnbanned,
		UserID:    userID,
		UserName:  userName,
		Status:    StatusValueActive,
		UpdatedBy: actor,
		Timestamp: now,
	})
}

// ForceLogout ends the live sessions of a user. Admins receive the same event.
func (b *Bridge) ForceLogout(ctx context.Context, userID, userName, actor string) {
	b.publish(ForceLogout{
		UserID:      userID,
		UserName:    userName,
		LoggedOutBy: actor,
		Message:     MessageLoggedOut,
		Timestamp:   b.now(),
	})
}

// AdminMessage sends a message to one user, or to admins when userID is empty.
func (b *Bridge) AdminMessage(ctx context.Context, userID, from, message string) {
	b.publish(AdminMessage{
		TargetUserID: userID,
		From:         from,
		Message:      message,
		Timestamp:    b.now(),
	})
}

func (b *Bridge) publish(event Event) {
	if b.publisher == nil {
		b.logger.Warn("realtime bridge has no publisher", "event", event.Name())
		return
	}
	b.publisher.Publish(event)
}
