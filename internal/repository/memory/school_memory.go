package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
)

type schoolRepository struct {
	mu      sync.Mutex
	schools map[string]domain.School
}

// NewSchoolRepository creates an in-process school store. Score increments
// are serialized by a single mutex.
func NewSchoolRepository() repository.SchoolRepository {
	return &schoolRepository{schools: make(map[string]domain.School)}
}

func (r *schoolRepository) Create(_ context.Context, school *domain.School) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schools[school.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.schools[school.ID] = *school
	return nil
}

func (r *schoolRepository) GetByID(_ context.Context, id string) (*domain.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schools[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *schoolRepository) List(_ context.Context, limit int) ([]*domain.School, error) {
	r.mu.Lock()
	out := make([]*domain.School, 0, len(r.schools))
	for _, s := range r.schools {
		s := s
		out = append(out, &s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *schoolRepository) IncrementScore(_ context.Context, id string, delta, min, max int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schools[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if !domain.WithinScoreBounds(s.Score, delta) {
		return 0, repository.ErrOutOfBounds
	}
	next := s.Score + delta
	if next < min || next > max {
		return 0, repository.ErrOutOfBounds
	}
	s.Score = next
	s.UpdatedAt = time.Now().UTC()
	r.schools[id] = s
	return next, nil
}
