package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestID tags each request with an id for log correlation, honoring an
// id supplied by the caller.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)

		return c.Next()
	}
}
