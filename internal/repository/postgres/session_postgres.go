package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, created_at, last_used_at, expires_at, ip_address, user_agent,
			   request_count, friction_level, blocked_until, last_friction_reason,
			   last_captcha_solved_at, rate_limited_at, captcha_failures`

// Create inserts a freshly issued session
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			id, created_at, last_used_at, expires_at, ip_address, user_agent,
			request_count, friction_level, blocked_until, last_friction_reason,
			last_captcha_solved_at, rate_limited_at, captcha_failures
		) VALUES (
			:id, :created_at, :last_used_at, :expires_at, :ip_address, :user_agent,
			:request_count, :friction_level, :blocked_until, :last_friction_reason,
			:last_captcha_solved_at, :rate_limited_at, :captcha_failures
		)`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by its token hash
func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// Delete removes a session by its token hash. Deleting a missing session is not an error.
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteExpired removes all sessions that expired before now
func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// Escalate adds one unit of friction in a single statement. The block is
// extended with GREATEST so it never moves backwards.
func (r *sessionRepository) Escalate(ctx context.Context, id string, now time.Time, policy domain.FrictionPolicy) (*domain.Session, error) {
	query := `
		UPDATE sessions SET
			friction_level = GREATEST(friction_level, 0) + 1,
			rate_limited_at = $2,
			last_friction_reason = $3,
			blocked_until = CASE
				WHEN $4 > 0 AND GREATEST(friction_level, 0) + 1 >= $4
				THEN GREATEST(blocked_until, $5)
				ELSE blocked_until
			END
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.updateReturning(ctx, "escalate", query,
		id, now, domain.FrictionReasonRateLimited, policy.Threshold, now.Add(policy.BlockDuration))
}

// Repay removes one unit of friction, clamped at zero
func (r *sessionRepository) Repay(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	query := `
		UPDATE sessions SET
			friction_level = GREATEST(friction_level - 1, 0),
			last_captcha_solved_at = $2,
			last_friction_reason = NULL
		WHERE id = $1
		RETURNING ` + sessionColumns

	return r.updateReturning(ctx, "repay", query, id, now)
}

// RecordCaptchaFailure counts a rejected challenge
func (r *sessionRepository) RecordCaptchaFailure(ctx context.Context, id string) error {
	query := `
		UPDATE sessions SET
			captcha_failures = captcha_failures + 1,
			last_friction_reason = $2
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, domain.FrictionReasonCaptchaFailed)
	if err != nil {
		return fmt.Errorf("failed to record captcha failure: %w", err)
	}

	return requireRow(result)
}

// Touch counts an accepted update. Empty ip or user agent keep the stored value.
func (r *sessionRepository) Touch(ctx context.Context, id string, now, expiresAt time.Time, ipAddress, userAgent string) error {
	query := `
		UPDATE sessions SET
			request_count = request_count + 1,
			last_used_at = $2,
			expires_at = $3,
			ip_address = COALESCE(NULLIF($4, ''), ip_address),
			user_agent = COALESCE(NULLIF($5, ''), user_agent)
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, now, expiresAt, ipAddress, userAgent)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return requireRow(result)
}

func (r *sessionRepository) updateReturning(ctx context.Context, op, query string, args ...interface{}) (*domain.Session, error) {
	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s session: %w", op, err)
	}

	return &session, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
