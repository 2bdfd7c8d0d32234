package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Me returns the identity of the current session.
func Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
		}
		return c.JSON(UserResponse{UserID: actor.UserID, Username: actor.Username})
	}
}

// Logout clears the session cookie.
func Logout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Cookie(&fiber.Cookie{
			Name:     AuthCookie,
			Value:    "",
			Expires:  time.Now().Add(-1 * time.Hour),
			MaxAge:   -1,
			HTTPOnly: true,
			SameSite: "Lax",
			Path:     "/",
		})
		return c.JSON(fiber.Map{"message": "Logged out successfully"})
	}
}

// RefreshToken issues a fresh token for a still valid session.
func RefreshToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFrom(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No session to refresh"})
		}

		fresh, err := RefreshJWT(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired session"})
		}

		SetAuthCookie(c, fresh)
		return c.JSON(fiber.Map{"message": "Token refreshed"})
	}
}

// SetAuthCookie stores the session token as an HTTP-only cookie.
func SetAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Expires:  time.Now().Add(GetJWTExpirationTime()),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})
}
