package middleware

import (
	"log"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
)

// RecoveryMiddleware recovers from panics and returns 500 error
func RecoveryMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				// Get stack trace
				stack := debug.Stack()

				// Log panic with stack trace
				log.Printf("PANIC: %v\n%s", r, stack)

				// Return 500, details stay in the log
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":  "internal server error",
					"status": "INTERNAL",
				})
				if err != nil {
					log.Printf("Error sending panic response: %v", err)
				}
			}
		}()

		// Continue to next handler
		return c.Next()
	}
}
