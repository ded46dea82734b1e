package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/service"
	"github.com/andressep95/clicker-service/pkg/validator"
)

type SessionHandler struct {
	sessionService *service.SessionService
	validator      *validator.Validator
	trustProxy     bool
}

func NewSessionHandler(sessionService *service.SessionService, validator *validator.Validator, trustProxy bool) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validator:      validator,
		trustProxy:     trustProxy,
	}
}

type CreateSessionRequest struct {
	UserAgent string `json:"userAgent,omitempty" validate:"omitempty,max=512,printable"`
}

type CreateSessionResponse struct {
	SessionToken    string `json:"sessionToken"`
	ExpiresAt       string `json:"expiresAt"`
	CaptchaProvider string `json:"captchaProvider"`
	CaptchaSiteKey  string `json:"captchaSiteKey,omitempty"`
}

// CreateSession issues an anonymous session
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, domain.InvalidArgument("", "invalid request body"))
		}
	}

	if err := h.validator.Validate(req); err != nil {
		return writeError(c, domain.InvalidArgument("", err.Error()))
	}

	result, err := h.sessionService.Create(c.Context(), clientIP(c, h.trustProxy), userAgent(c, req.UserAgent))
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{
		SessionToken:    result.Token,
		ExpiresAt:       result.ExpiresAt.UTC().Format(time.RFC3339),
		CaptchaProvider: result.CaptchaProvider,
		CaptchaSiteKey:  result.CaptchaSiteKey,
	})
}
