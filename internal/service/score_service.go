package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
)

const (
	// MaxPositiveDelta caps a single helpful update
	MaxPositiveDelta = 500
	// MaxNegativeDelta caps a single penalizing update (magnitude)
	MaxNegativeDelta = 1000
)

// ScoreService validates click deltas and applies them to school counters
type ScoreService struct {
	schoolRepo repository.SchoolRepository
}

func NewScoreService(schoolRepo repository.SchoolRepository) *ScoreService {
	return &ScoreService{
		schoolRepo: schoolRepo,
	}
}

// ValidateDelta checks the per-call shape of delta and returns it as an integer.
// This is independent of the aggregate score bound enforced by Apply.
func ValidateDelta(delta float64) (int64, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, domain.InvalidArgument(domain.CodeInvalidDelta, "delta must be a finite number")
	}
	if delta == 0 {
		return 0, domain.InvalidArgument(domain.CodeInvalidDelta, "delta must be non-zero")
	}
	if delta != math.Trunc(delta) {
		return 0, domain.InvalidArgument(domain.CodeInvalidDelta, "delta must be a whole number")
	}
	if delta > MaxPositiveDelta {
		return 0, domain.InvalidArgument(domain.CodeInvalidDelta, fmt.Sprintf("delta must be at most %d", MaxPositiveDelta))
	}
	if delta < -MaxNegativeDelta {
		return 0, domain.InvalidArgument(domain.CodeInvalidDelta, fmt.Sprintf("delta must be at least -%d", MaxNegativeDelta))
	}
	return int64(delta), nil
}

// Apply atomically adds delta to the school's score and returns the new score.
// A result outside [domain.MinScore, domain.MaxScore] is rejected with nothing written.
func (s *ScoreService) Apply(ctx context.Context, schoolID string, delta float64) (int64, error) {
	// Validate delta
	d, err := ValidateDelta(delta)
	if err != nil {
		return 0, err
	}

	// Conditional increment, nothing is written when the bound would break
	score, err := s.schoolRepo.IncrementScore(ctx, schoolID, d, domain.MinScore, domain.MaxScore)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return 0, domain.NotFound(domain.CodeSchoolNotFound, "school not found")
		case errors.Is(err, repository.ErrOutOfBounds):
			return 0, domain.NewError(domain.StatusFailedPrecondition, domain.CodeScoreOutOfBounds, "score limit reached")
		default:
			return 0, domain.Internal("failed to update score", err)
		}
	}

	return score, nil
}
