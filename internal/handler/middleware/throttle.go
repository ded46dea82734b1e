package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// ThrottleMiddleware caps the whole API at rps requests per second with the
// given burst, independent of the per-IP and per-session policies.
// A non-positive rps disables it.
func ThrottleMiddleware(rps float64, burst int) fiber.Handler {
	if rps <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *fiber.Ctx) error {
		if !limiter.Allow() {
			log.Printf("[THROTTLE] Rejected %s %s from %s", c.Method(), c.Path(), c.IP())
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":  "service is busy, try again shortly",
				"status": "RESOURCE_EXHAUSTED",
				"code":   "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
