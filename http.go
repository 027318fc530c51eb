package accounts

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

// RouteAuthenticator builds the route guards of the API. A guard checks the
// bearer token against one keyspace, loads the account and stores it in the
// request locals.
type RouteAuthenticator struct {
	users       Users
	userTokens  TokenService
	adminTokens TokenService
	Logger      Logger
}

func NewHTTPAuthenticator(users Users, userTokens, adminTokens TokenService) *RouteAuthenticator {
	return &RouteAuthenticator{
		users:       users,
		userTokens:  userTokens,
		adminTokens: adminTokens,
		Logger:      defLogger,
	}
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = ResolveLogger(logger)
	return a
}

// RequireUser accepts user keyspace tokens of accounts that are not banned.
func (a *RouteAuthenticator) RequireUser() fiber.Handler {
	return a.guard(a.userTokens, false)
}

// RequireAdmin accepts admin keyspace tokens of administrators that are not
// banned. The stored role decides, not the role claim of the token.
func (a *RouteAuthenticator) RequireAdmin() fiber.Handler {
	return a.guard(a.adminTokens, true)
}

func (a *RouteAuthenticator) guard(tokens TokenService, admin bool) fiber.Handler {
	cfg := jwtware.Config{
		ContextKey:          LocalsClaimsKey,
		TokenValidator:      TokenValidator(tokens),
		ErrorHandler:        a.authErrHandler(tokens.Keyspace()),
		ValidationListeners: []jwtware.ValidationListener{a.loadAccount(admin)},
	}
	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) loadAccount(admin bool) jwtware.ValidationListener {
	return func(c *fiber.Ctx, raw jwtware.AuthClaims) error {
		claims, ok := raw.(AuthClaims)
		if !ok {
			return ErrUnableToDecodeSession
		}

		id, err := uuid.Parse(claims.UserID())
		if err != nil {
			return ErrInvalidToken
		}

		user, err := a.users.FindByID(c.UserContext(), id)
		if err != nil {
			if IsNotFound(err) {
				if admin {
					return ErrAdminRequired
				}
				return ErrInvalidToken
			}
			return err
		}

		if admin && !user.IsAdmin() {
			a.Logger.Warn("admin guard: account is not an administrator", "user_id", user.ID.String())
			return ErrAdminRequired
		}
		if user.IsBanned() {
			message := "Account has been banned"
			if admin {
				message = "Admin account has been banned"
			}
			return NewAccountBannedError(message, user.BanReason)
		}

		setCurrent(c, user, claims)
		return nil
	}
}

func (a *RouteAuthenticator) authErrHandler(keyspace string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var rich *goerrors.Error
		switch {
		case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
			return ErrAccessTokenRequired
		case IsTokenExpiredError(err):
			return ErrTokenExpired
		case !goerrors.As(err, &rich):
			return err
		case rich.Category != goerrors.CategoryAuth, rich.TextCode == TextCodeTokenInvalid:
			return rich
		}

		a.Logger.Debug("route guard rejected token", "keyspace", keyspace, "path", c.Path(), "error", err)
		return ErrInvalidToken
	}
}

// TokenValidator adapts a TokenService to the jwtware middleware.
func TokenValidator(ts TokenService) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		claims, err := ts.Validate(raw)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}
