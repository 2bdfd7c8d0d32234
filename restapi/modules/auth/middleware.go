package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paycheck/paycheck-backend/internal/workflow"
)

// tokenFrom reads the session token from the cookie, falling back to an
// Authorization bearer header for non-browser clients.
func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies(AuthCookie); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func setIdentity(c *fiber.Ctx, claims *Claims) {
	c.Locals(LocalAuthenticated, true)
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUsername, claims.Username)
}

// RequireAuth middleware validates JWT token from cookie and blocks guests
func RequireAuth(c *fiber.Ctx) error {
	token := tokenFrom(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired session",
		})
	}

	setIdentity(c, claims)
	return c.Next()
}

// OptionalAuth identifies the user if a token is present but does not block guests.
func OptionalAuth(c *fiber.Ctx) error {
	c.Locals(LocalAuthenticated, false)

	token := tokenFrom(c)
	if token == "" {
		return c.Next()
	}

	// Invalid or expired tokens are treated as guest access
	if claims, err := ValidateJWT(token); err == nil {
		setIdentity(c, claims)
	}
	return c.Next()
}

// ActorFrom returns the identity the middleware attached to the request.
func ActorFrom(c *fiber.Ctx) (workflow.Actor, bool) {
	userID, _ := c.Locals(LocalUserID).(string)
	username, _ := c.Locals(LocalUsername).(string)
	actor := workflow.Actor{UserID: userID, Username: username}
	return actor, actor.Valid()
}
