package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
)

const uniqueViolation = "23505"

type schoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository creates a new PostgreSQL school repository
func NewSchoolRepository(db *sqlx.DB) repository.SchoolRepository {
	return &schoolRepository{db: db}
}

// Create inserts a new school
func (r *schoolRepository) Create(ctx context.Context, school *domain.School) error {
	query := `
		INSERT INTO schools (id, name, score, created_at, updated_at)
		VALUES (:id, :name, :score, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create school: %w", err)
	}

	return nil
}

// GetByID retrieves a school by its slug
func (r *schoolRepository) GetByID(ctx context.Context, id string) (*domain.School, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM schools
		WHERE id = $1`

	var school domain.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}

	return &school, nil
}

// List returns schools ordered for the leaderboard
func (r *schoolRepository) List(ctx context.Context, limit int) ([]*domain.School, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM schools
		ORDER BY score DESC, name ASC
		LIMIT $1`

	schools := []*domain.School{}
	if err := r.db.SelectContext(ctx, &schools, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}

	return schools, nil
}

// IncrementScore applies delta in a single conditional UPDATE so concurrent
// writers never lose updates and an out-of-range result is never stored.
func (r *schoolRepository) IncrementScore(ctx context.Context, id string, delta, min, max int64) (int64, error) {
	query := `
		UPDATE schools
		SET score = score + $2,
			updated_at = NOW()
		WHERE id = $1 AND score + $2 BETWEEN $3 AND $4
		RETURNING score`

	var score int64
	err := r.db.QueryRowxContext(ctx, query, id, delta, min, max).Scan(&score)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}

	// No row matched: either the school is missing or the bound check failed.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM schools WHERE id = $1)`, id); err != nil {
		return 0, fmt.Errorf("failed to check school existence: %w", err)
	}
	if !exists {
		return 0, repository.ErrNotFound
	}

	return 0, repository.ErrOutOfBounds
}
