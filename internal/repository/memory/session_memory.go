package memory

import (
	"context"
	"sync"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
)

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewSessionRepository creates an in-process session store. Records are copied
// on the way in and out so callers never share mutable state.
func NewSessionRepository() repository.SessionRepository {
	return &sessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *sessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *sessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneSession(&s)
	return &out, nil
}

func (r *sessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *sessionRepository) Escalate(_ context.Context, id string, now time.Time, policy domain.FrictionPolicy) (*domain.Session, error) {
	return r.update(id, func(s *domain.Session) {
		s.Escalate(now, policy)
	})
}

func (r *sessionRepository) Repay(_ context.Context, id string, now time.Time) (*domain.Session, error) {
	return r.update(id, func(s *domain.Session) {
		s.Repay(now)
	})
}

func (r *sessionRepository) RecordCaptchaFailure(_ context.Context, id string) error {
	_, err := r.update(id, func(s *domain.Session) {
		s.RecordCaptchaFailure()
	})
	return err
}

func (r *sessionRepository) Touch(_ context.Context, id string, now, expiresAt time.Time, ipAddress, userAgent string) error {
	_, err := r.update(id, func(s *domain.Session) {
		s.Touch(now, expiresAt.Sub(now), ipAddress, userAgent)
	})
	return err
}

// update applies fn to the stored record under the write lock and returns a copy
func (r *sessionRepository) update(id string, fn func(*domain.Session)) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&s)
	r.sessions[id] = s

	out := cloneSession(&s)
	return &out, nil
}

func cloneSession(s *domain.Session) domain.Session {
	out := *s
	out.BlockedUntil = cloneTime(s.BlockedUntil)
	out.LastCaptchaSolvedAt = cloneTime(s.LastCaptchaSolvedAt)
	out.RateLimitedAt = cloneTime(s.RateLimitedAt)
	if s.LastFrictionReason != nil {
		reason := *s.LastFrictionReason
		out.LastFrictionReason = &reason
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
