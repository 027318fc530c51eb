package accounts

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

// Fiber locals written by the route guards.
const (
	LocalsUserKey   = "accounts.user"
	LocalsClaimsKey = "accounts.claims"
)

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// CurrentUser returns the account loaded by a route guard.
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals(LocalsUserKey).(*User)
	return user, ok && user != nil
}

// CurrentClaims returns the token claims checked by a route guard.
func CurrentClaims(c *fiber.Ctx) (AuthClaims, bool) {
	claims, ok := c.Locals(LocalsClaimsKey).(AuthClaims)
	return claims, ok && claims != nil
}

func setCurrent(c *fiber.Ctx, user *User, claims AuthClaims) {
	c.Locals(LocalsUserKey, user)
	c.Locals(LocalsClaimsKey, claims)
	ctx := WithClaimsContext(WithContext(c.UserContext(), user), claims)
	c.SetUserContext(ctx)
}
