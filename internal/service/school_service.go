package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
	"github.com/andressep95/clicker-service/pkg/ratelimit"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 500
)

type CreateSchoolRequest struct {
	Name string `json:"name" validate:"required,notblank,printable,min=2,max=100"`
}

type SchoolService struct {
	schoolRepo repository.SchoolRepository
	limiter    ratelimit.Limiter
	policies   domain.Policies
}

func NewSchoolService(schoolRepo repository.SchoolRepository, limiter ratelimit.Limiter, policies domain.Policies) *SchoolService {
	return &SchoolService{
		schoolRepo: schoolRepo,
		limiter:    limiter,
		policies:   policies,
	}
}

// Create registers a school whose id is the slug of its name
func (s *SchoolService) Create(ctx context.Context, clientIP string, req CreateSchoolRequest) (*domain.School, error) {
	// Check creation rate per address
	allowed, err := s.limiter.Consume(ctx, limiterKey(clientIP), s.policies.SchoolCreate)
	if err != nil {
		return nil, domain.Internal("failed to check rate limit", err)
	}
	if !allowed {
		return nil, domain.RateLimited("too many schools created, try again later")
	}

	// Normalize whitespace and derive the id
	name := strings.Join(strings.Fields(req.Name), " ")
	id := domain.Slugify(name)
	if id == "" {
		return nil, domain.InvalidArgument(domain.CodeInvalidSchoolName, "school name must contain letters or digits")
	}

	now := time.Now().UTC()
	school := &domain.School{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Save school
	if err := s.schoolRepo.Create(ctx, school); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, domain.NewError(domain.StatusAlreadyExists, domain.CodeSchoolExists, "school already exists")
		}
		return nil, domain.Internal("failed to create school", err)
	}

	return school, nil
}

// Get returns a single school
func (s *SchoolService) Get(ctx context.Context, id string) (*domain.School, error) {
	school, err := s.schoolRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound(domain.CodeSchoolNotFound, "school not found")
		}
		return nil, domain.Internal("failed to get school", err)
	}
	return school, nil
}

// List returns schools by descending score, then name
func (s *SchoolService) List(ctx context.Context, limit int) ([]*domain.School, error) {
	// Clamp page size
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	schools, err := s.schoolRepo.List(ctx, limit)
	if err != nil {
		return nil, domain.Internal("failed to list schools", err)
	}
	return schools, nil
}
