package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the durable lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusBanned:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Name         string     `bun:"name,notnull" json:"name"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Role         UserRole   `bun:"role,notnull" json:"role"`
	Status       UserStatus `bun:"status,notnull" json:"status"`
	BanReason    string     `bun:"ban_reason,nullzero" json:"banReason,omitempty"`
	BannedAt     *time.Time `bun:"banned_at,nullzero" json:"bannedAt,omitempty"`
	BannedBy     string     `bun:"banned_by,nullzero" json:"bannedBy,omitempty"`
	LastLogin    *time.Time `bun:"last_login,nullzero" json:"lastLogin,omitempty"`
	Phone        string     `bun:"phone,nullzero" json:"phone,omitempty"`
	Bio          string     `bun:"bio,nullzero" json:"bio,omitempty"`
	Avatar       string     `bun:"avatar,nullzero" json:"avatar,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// EnsureStatus defaults an empty status to active.
func (u *User) EnsureStatus() {
	if u != nil && u.Status == "" {
		u.Status = UserStatusActive
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsBanned() bool {
	return u != nil && u.Status == UserStatusBanned
}

func (u *User) IsActive() bool {
	return u != nil && (u.Status == UserStatusActive || u.Status == "")
}

func prepareUserDefaults(user *User) {
	if user == nil {
		return
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	if user.Role == "" {
		user.Role = RoleUser
	}
	user.EnsureStatus()
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
