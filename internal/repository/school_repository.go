package repository

import (
	"context"

	"github.com/andressep95/clicker-service/internal/domain"
)

type SchoolRepository interface {
	Create(ctx context.Context, school *domain.School) error
	GetByID(ctx context.Context, id string) (*domain.School, error)
	List(ctx context.Context, limit int) ([]*domain.School, error)
	// IncrementScore adds delta atomically and returns the new score. The write
	// only happens if the result stays within [min, max]; otherwise
	// ErrOutOfBounds is returned and the stored score is unchanged.
	IncrementScore(ctx context.Context, id string, delta, min, max int64) (int64, error)
}
