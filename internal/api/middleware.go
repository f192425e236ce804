package api

import (
	"strings"

	"evently/internal/auth"
	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
)

func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !isAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) int {
	id, _ := c.Locals("userID").(int)
	return id
}

func currentUsername(c *fiber.Ctx) string {
	name, _ := c.Locals("username").(string)
	return name
}

func isAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == models.RoleAdmin
}
