package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/service"
	"github.com/andressep95/clicker-service/pkg/validator"
)

type ScoreHandler struct {
	clickService *service.ClickService
	validator    *validator.Validator
	trustProxy   bool
}

func NewScoreHandler(clickService *service.ClickService, validator *validator.Validator, trustProxy bool) *ScoreHandler {
	return &ScoreHandler{
		clickService: clickService,
		validator:    validator,
		trustProxy:   trustProxy,
	}
}

// UpdateScore submits a click delta for a school
// POST /api/v1/scores
func (h *ScoreHandler) UpdateScore(c *fiber.Ctx) error {
	var req service.UpdateScoreRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, domain.InvalidArgument("", "invalid request body"))
	}

	if err := h.validator.Validate(req); err != nil {
		return writeError(c, domain.InvalidArgument("", err.Error()))
	}

	if req.ClientContext == nil {
		req.ClientContext = &service.ClientContext{}
	}
	req.ClientContext.UserAgent = userAgent(c, req.ClientContext.UserAgent)

	result, err := h.clickService.UpdateScore(c.Context(), clientIP(c, h.trustProxy), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
