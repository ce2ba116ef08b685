package middleware

import (
	"lifelessons/backend/config"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware requires a valid token and stores its claims in c.Locals.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ExtractClaimsFromToken(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		c.Locals(utils.ClaimsKey, claims)
		return c.Next()
	}
}

// OptionalAuth resolves the caller when a token is sent and lets anonymous
// requests through. A bad token is treated as no token.
func OptionalAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if claims, err := utils.ExtractClaimsFromToken(c, cfg); err == nil {
			c.Locals(utils.ClaimsKey, claims)
		}
		return c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := utils.CurrentClaims(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		if !claims.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden - Admin access required",
			})
		}
		return c.Next()
	}
}
