package repository

import (
	"context"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
)

// SessionRepository is the token store. IDs are always token hashes, never
// the raw secret handed to the client.
//
// Mutations are narrow: each one changes only the columns it owns and does
// the arithmetic in the store, so concurrent requests on the same session
// never overwrite each other's friction or counters.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Escalate adds one unit of friction and, on reaching the policy
	// threshold, extends the block. It returns the updated session.
	Escalate(ctx context.Context, id string, now time.Time, policy domain.FrictionPolicy) (*domain.Session, error)
	// Repay removes one unit of friction, never going below zero.
	Repay(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	// RecordCaptchaFailure bumps the failure counter without touching friction.
	RecordCaptchaFailure(ctx context.Context, id string) error
	// Touch counts an accepted update and rolls the expiry forward.
	Touch(ctx context.Context, id string, now, expiresAt time.Time, ipAddress, userAgent string) error
}
