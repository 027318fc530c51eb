// Package statusgate re-reads the durable account status on every
// authenticated request and refuses accounts that are no longer active.
// It backs up the realtime channel for clients that missed a push.
package statusgate

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	StatusActive = "active"
	StatusBanned = "banned"

	TextCodeStaleStatus     = "STALE_STATUS_REJECTED"
	TextCodeAccountNotFound = "USER_NOT_FOUND"
)

var (
	// ErrStaleStatusRejected is returned for accounts whose stored status is
	// neither active nor banned.
	ErrStaleStatusRejected = goerrors.New("Your account is not active", goerrors.CategoryAuthz).
		WithTextCode(TextCodeStaleStatus).
		WithCode(goerrors.CodeForbidden)

	ErrAccountNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeAccountNotFound).
		WithCode(goerrors.CodeNotFound)
)

// NewBannedError is the refusal of a banned account. It carries banned=true.
func NewBannedError() *goerrors.Error {
	return goerrors.New("Your account has been banned. Please contact support.", goerrors.CategoryAuthz).
		WithTextCode(TextCodeStaleStatus).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{"banned": true})
}

// Verifier resolves a bearer token to the account id it was issued for,
// trying every keyspace.
type Verifier interface {
	Subject(token string) (string, error)
}

// StatusReader reads the stored status of an account.
type StatusReader interface {
	AccountStatus(ctx context.Context, userID string) (string, error)
}

type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type Config struct {
	Verifier Verifier
	Store    StatusReader
	// IsNotFound reports whether a store error means the account is gone.
	IsNotFound func(error) bool
	// ErrorHandler renders refusals. By default the error is returned to
	// the fiber error handler.
	ErrorHandler fiber.ErrorHandler
	Logger       Logger
}

// New returns the gate middleware. Requests without a token, or with a
// token no keyspace accepts, pass through and are left to the route guards.
func New(cfg Config) fiber.Handler {
	if cfg.Verifier == nil || cfg.Store == nil {
		panic("statusgate: Verifier and Store are required")
	}
	if cfg.IsNotFound == nil {
		cfg.IsNotFound = func(err error) bool { return goerrors.IsNotFound(err) }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ *fiber.Ctx, err error) error { return err }
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Next()
		}

		userID, err := cfg.Verifier.Subject(token)
		if err != nil || userID == "" {
			return c.Next()
		}

		status, err := cfg.Store.AccountStatus(c.UserContext(), userID)
		if err != nil {
			if cfg.IsNotFound(err) {
				return cfg.ErrorHandler(c, ErrAccountNotFound)
			}
			cfg.Logger.Error("statusgate: status lookup failed", "user_id", userID, "error", err)
			return cfg.ErrorHandler(c, goerrors.Wrap(err, goerrors.CategoryInternal, "Server error while checking user status").
				WithCode(goerrors.CodeInternal))
		}

		switch status {
		case StatusActive, "":
			return c.Next()
		case StatusBanned:
			cfg.Logger.Debug("statusgate: banned account refused", "user_id", userID, "path", c.Path())
			return cfg.ErrorHandler(c, NewBannedError())
		default:
			cfg.Logger.Debug("statusgate: inactive account refused", "user_id", userID, "status", status)
			return cfg.ErrorHandler(c, ErrStaleStatusRejected)
		}
	}
}

// IsBanned reports whether err is the banned refusal of the gate.
func IsBanned(err error) bool {
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return false
	}
	banned, _ := rich.Metadata["banned"].(bool)
	return banned
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
