package server

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
)

// BearerAuth enforces the shared worker secret on job endpoints. With
// no secret configured the check is skipped entirely, matching the
// upstream deployment where the platform sits in front.
func BearerAuth(token string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		Next: func(c *fiber.Ctx) bool { return token == "" },
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
				return true, nil
			}
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		},
	})
}
