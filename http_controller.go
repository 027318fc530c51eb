package accounts

import (
	"github.com/gofiber/fiber/v2"
)

// AuthController serves the account holder routes under /api/auth.
type AuthController struct {
	Accounts *AccountService
	Guards   *RouteAuthenticator
	Logger   Logger
}

func NewAuthController(accounts *AccountService, guards *RouteAuthenticator, logger Logger) *AuthController {
	return &AuthController{
		Accounts: accounts,
		Guards:   guards,
		Logger:   ResolveLogger(logger),
	}
}

// Mount registers the routes on router. gate runs before every route except
// registration.
func (a *AuthController) Mount(router fiber.Router, gate fiber.Handler) {
	user := a.Guards.RequireUser()

	router.Post("/register", a.Register)
	router.Post("/login", gate, a.Login)
	router.Get("/me", gate, user, a.Me)
	router.Put("/profile", gate, user, a.UpdateProfile)
	router.Put("/change-password", gate, user, a.ChangePassword)
	router.Post("/logout", gate, user, a.Logout)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := RegisterRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := a.Accounts.Register(c.UserContext(), payload)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusCreated, "User registered successfully. Welcome!", session)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := a.Accounts.Login(c.UserContext(), payload)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Login successful", session)
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}
	return SendSuccess(c, fiber.StatusOK, "Profile retrieved successfully", fiber.Map{"user": user})
}

func (a *AuthController) UpdateProfile(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	payload := UpdateProfileRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	updated, err := a.Accounts.UpdateProfile(c.UserContext(), user, payload)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Profile updated successfully", fiber.Map{"user": updated})
}

func (a *AuthController) ChangePassword(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrInvalidToken
	}

	payload := ChangePasswordRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := a.Accounts.ChangePassword(c.UserContext(), user, payload); err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Password changed successfully", nil)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	if user, ok := CurrentUser(c); ok {
		a.Accounts.Logout(c.UserContext(), user)
	}
	return SendSuccess(c, fiber.StatusOK, "Logged out successfully", nil)
}

// AdminController serves the moderation routes under /api/admin.
type AdminController struct {
	Auther     *Auther
	Moderation *ModerationService
	Guards     *RouteAuthenticator
	Logger     Logger
}

func NewAdminController(auther *Auther, moderation *ModerationService, guards *RouteAuthenticator, logger Logger) *AdminController {
	return &AdminController{
		Auther:     auther,
		Moderation: moderation,
		Guards:     guards,
		Logger:     ResolveLogger(logger),
	}
}

// Mount registers the routes on router. Every route but login runs the gate
// and the admin guard.
func (a *AdminController) Mount(router fiber.Router, gate fiber.Handler) {
	admin := a.Guards.RequireAdmin()

	router.Post("/login", a.Login)
	router.Get("/stats", gate, admin, a.Stats)
	router.Get("/users", gate, admin, a.ListUsers)
	router.Get("/users/:id", gate, admin, a.GetUser)
	router.Put("/users/:id", gate, admin, a.UpdateUser)
	router.Delete("/users/:id", gate, admin, a.DeleteUser)
	router.Post("/users/:id/ban", gate, admin, a.BanUser)
	router.Post("/users/:id/unban", gate, admin, a.UnbanUser)
	router.Post("/users/:id/force-logout", gate, admin, a.ForceLogout)
	router.Post("/users/:id/message", gate, admin, a.SendMessage)
	router.Get("/users/:id/presence", gate, admin, a.Presence)
	router.Patch("/user/:id/status", gate, admin, a.UpdateStatus)
}

func (a *AdminController) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	session, err := a.Auther.LoginAdmin(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Admin login successful", fiber.Map{
		"token":     session.Token,
		"admin":     session.User,
		"expiresAt": session.ExpiresAt,
	})
}

func (a *AdminController) Stats(c *fiber.Ctx) error {
	stats, err := a.Moderation.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Dashboard stats retrieved successfully", fiber.Map{"stats": stats})
}

func (a *AdminController) ListUsers(c *fiber.Ctx) error {
	query := ListUsersQuery{}
	if err := c.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query string")
	}

	page, err := a.Moderation.ListUsers(c.UserContext(), query)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Users retrieved successfully", page)
}

func (a *AdminController) GetUser(c *fiber.Ctx) error {
	user, err := a.Moderation.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User retrieved successfully", fiber.Map{"user": user})
}

func (a *AdminController) UpdateUser(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	payload := UpdateUserRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := a.Moderation.UpdateUser(c.UserContext(), actor, c.Params("id"), payload)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User updated successfully", fiber.Map{"user": user})
}

func (a *AdminController) DeleteUser(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)
	id := c.Params("id")

	if err := a.Moderation.DeleteUser(c.UserContext(), actor, id); err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User deleted successfully", fiber.Map{"deletedUserId": id})
}

func (a *AdminController) BanUser(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	payload := BanRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	user, err := a.Moderation.BanUser(c.UserContext(), actor, c.Params("id"), payload)
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User banned successfully", fiber.Map{"user": user})
}

func (a *AdminController) UnbanUser(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	user, err := a.Moderation.UnbanUser(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User unbanned successfully", fiber.Map{"user": user})
}

func (a *AdminController) ForceLogout(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	user, err := a.Moderation.ForceLogout(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "User "+user.Name+" has been forced to logout", nil)
}

func (a *AdminController) SendMessage(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	payload := MessageRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := a.Moderation.SendMessage(c.UserContext(), actor, c.Params("id"), payload); err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Message sent successfully", nil)
}

func (a *AdminController) Presence(c *fiber.Ctx) error {
	presence, err := a.Moderation.Presence(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return SendSuccess(c, fiber.StatusOK, "Presence retrieved successfully", presence)
}

func (a *AdminController) UpdateStatus(c *fiber.Ctx) error {
	actor, _ := CurrentUser(c)

	payload := StatusRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := a.Moderation.UpdateStatus(c.UserContext(), actor, c.Params("id"), payload)
	if err != nil {
		return err
	}

	action := "updated"
	switch user.Status {
	case UserStatusBanned:
		action = "banned"
	case UserStatusActive:
		action = "activated"
	case UserStatusInactive:
		action = "deactivated"
	}
	return SendSuccess(c, fiber.StatusOK, "User "+action+" successfully", fiber.Map{"user": user})
}
