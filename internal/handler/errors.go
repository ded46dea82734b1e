package handler

import (
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/clicker-service/internal/domain"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error        string `json:"error"`
	Status       string `json:"status"`
	Code         string `json:"code,omitempty"`
	BlockedUntil string `json:"blockedUntil,omitempty"`
}

func httpStatus(status domain.Status) int {
	switch status {
	case domain.StatusInvalidArgument, domain.StatusFailedPrecondition:
		return fiber.StatusBadRequest
	case domain.StatusUnauthenticated:
		return fiber.StatusUnauthorized
	case domain.StatusPermissionDenied:
		return fiber.StatusForbidden
	case domain.StatusNotFound:
		return fiber.StatusNotFound
	case domain.StatusAlreadyExists:
		return fiber.StatusConflict
	case domain.StatusResourceExhausted:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Internal causes are logged and
// never sent to the client.
func writeError(c *fiber.Ctx, err error) error {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.Internal("internal server error", err)
	}

	resp := ErrorResponse{
		Error:  derr.Message,
		Status: string(derr.Status),
		Code:   derr.Code,
	}

	if derr.Status == domain.StatusInternal {
		log.Printf("[HANDLER] %s %s failed: %v", c.Method(), c.Path(), err)
		resp.Error = "internal server error"
	}

	if derr.BlockedUntil != nil {
		resp.BlockedUntil = derr.BlockedUntil.UTC().Format(time.RFC3339)
		c.Set(fiber.HeaderRetryAfter, retryAfter(*derr.BlockedUntil, time.Now()))
	}

	return c.Status(httpStatus(derr.Status)).JSON(resp)
}

// retryAfter returns whole seconds until t, at least 1
func retryAfter(t, now time.Time) string {
	secs := int64(math.Ceil(t.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// ErrorHandler handles errors escaping handlers and fiber's own errors
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status := domain.StatusInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			status = domain.StatusNotFound
		case fe.Code == fiber.StatusTooManyRequests:
			status = domain.StatusResourceExhausted
		case fe.Code >= 400 && fe.Code < 500:
			status = domain.StatusInvalidArgument
		}
		if status != domain.StatusInternal {
			return c.Status(fe.Code).JSON(ErrorResponse{
				Error:  fe.Message,
				Status: string(status),
			})
		}
	}

	return writeError(c, err)
}
