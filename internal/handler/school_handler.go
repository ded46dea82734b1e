package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/service"
	"github.com/andressep95/clicker-service/pkg/validator"
)

type SchoolHandler struct {
	schoolService *service.SchoolService
	validator     *validator.Validator
	trustProxy    bool
}

func NewSchoolHandler(schoolService *service.SchoolService, validator *validator.Validator, trustProxy bool) *SchoolHandler {
	return &SchoolHandler{
		schoolService: schoolService,
		validator:     validator,
		trustProxy:    trustProxy,
	}
}

// SchoolResponse is the public view of a school
type SchoolResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int64  `json:"score"`
	UpdatedAt string `json:"updatedAt"`
}

func toSchoolResponse(s *domain.School) SchoolResponse {
	return SchoolResponse{
		ID:        s.ID,
		Name:      s.Name,
		Score:     s.Score,
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ListSchools returns the leaderboard
// GET /api/v1/schools?limit=50
func (h *SchoolHandler) ListSchools(c *fiber.Ctx) error {
	schools, err := h.schoolService.List(c.Context(), c.QueryInt("limit", service.DefaultLeaderboardLimit))
	if err != nil {
		return writeError(c, err)
	}

	response := make([]SchoolResponse, len(schools))
	for i, school := range schools {
		response[i] = toSchoolResponse(school)
	}

	return c.JSON(fiber.Map{
		"schools": response,
		"count":   len(response),
	})
}

// GetSchool returns a single school
// GET /api/v1/schools/:id
func (h *SchoolHandler) GetSchool(c *fiber.Ctx) error {
	school, err := h.schoolService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toSchoolResponse(school))
}

// CreateSchool registers a new school
// POST /api/v1/schools
func (h *SchoolHandler) CreateSchool(c *fiber.Ctx) error {
	var req service.CreateSchoolRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, domain.InvalidArgument("", "invalid request body"))
	}

	if err := h.validator.Validate(req); err != nil {
		return writeError(c, domain.InvalidArgument(domain.CodeInvalidSchoolName, err.Error()))
	}

	school, err := h.schoolService.Create(c.Context(), clientIP(c, h.trustProxy), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toSchoolResponse(school))
}
