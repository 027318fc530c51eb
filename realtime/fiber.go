package realtime

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localsIdentityKey = "realtime.identity"

// HandshakeFromRequest reads the credential from the token query parameter or
// the Authorization header, and the hints from the query string.
func HandshakeFromRequest(c *fiber.Ctx) Handshake {
	token := c.Query("token")
	if token == "" {
		header := c.Get(fiber.HeaderAuthorization)
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}
	return Handshake{
		Token:     token,
		UserID:    c.Query("userId"),
		UserEmail: c.Query("userEmail"),
	}
}

// Upgrade authenticates the handshake before the protocol switch. Rejected
// requests get a 401 and no WebSocket is created.
func (g *Gateway) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		identity, err := g.Authenticate(HandshakeFromRequest(c))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"message":    "Authentication error",
					"code":       TextCodeAuthenticationRejected,
					"statusCode": fiber.StatusUnauthorized,
				},
			})
		}

		c.Locals(localsIdentityKey, identity)
		return c.Next()
	}
}

// Handler serves upgraded connections until ctx is done.
func (g *Gateway) Handler(ctx context.Context) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		identity, ok := c.Locals(localsIdentityKey).(Identity)
		if !ok || !identity.Valid() {
			_ = c.Close()
			return
		}
		if err := g.Serve(ctx, c, identity); err != nil {
			g.logger.Debug("realtime connection ended with error", "user_id", identity.ID, "error", err)
		}
	})
}
