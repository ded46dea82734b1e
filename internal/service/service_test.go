package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
	"github.com/andressep95/clicker-service/internal/repository/memory"
	"github.com/andressep95/clicker-service/pkg/hash"
	"github.com/andressep95/clicker-service/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeVerifier accepts exactly the token "valid". onVerify, when set, runs
// before the answer is returned.
type fakeVerifier struct {
	mu       sync.Mutex
	calls    int
	onVerify func()
}

func (v *fakeVerifier) Verify(_ context.Context, token, _ string) bool {
	v.mu.Lock()
	v.calls++
	hook := v.onVerify
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
	return token == "valid"
}

func (v *fakeVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// countingLimiter records every consume so tests can assert ordering
type countingLimiter struct {
	ratelimit.Limiter
	mu       sync.Mutex
	consumed []string
	err      error
}

func (l *countingLimiter) Consume(ctx context.Context, key string, policy ratelimit.Policy) (bool, error) {
	l.mu.Lock()
	l.consumed = append(l.consumed, policy.Name)
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return false, err
	}
	return l.Limiter.Consume(ctx, key, policy)
}

func (l *countingLimiter) Consumed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.consumed...)
}

// failingSessionRepo fails every session mutation once armed. Create and
// reads keep working so tests can still set up sessions.
type failingSessionRepo struct {
	repository.SessionRepository
	mu   sync.Mutex
	fail bool
}

var errStoreUnavailable = errors.New("store unavailable")

func (r *failingSessionRepo) failing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail
}

func (r *failingSessionRepo) Escalate(ctx context.Context, id string, now time.Time, policy domain.FrictionPolicy) (*domain.Session, error) {
	if r.failing() {
		return nil, errStoreUnavailable
	}
	return r.SessionRepository.Escalate(ctx, id, now, policy)
}

func (r *failingSessionRepo) Repay(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	if r.failing() {
		return nil, errStoreUnavailable
	}
	return r.SessionRepository.Repay(ctx, id, now)
}

func (r *failingSessionRepo) RecordCaptchaFailure(ctx context.Context, id string) error {
	if r.failing() {
		return errStoreUnavailable
	}
	return r.SessionRepository.RecordCaptchaFailure(ctx, id)
}

func (r *failingSessionRepo) Touch(ctx context.Context, id string, now, expiresAt time.Time, ipAddress, userAgent string) error {
	if r.failing() {
		return errStoreUnavailable
	}
	return r.SessionRepository.Touch(ctx, id, now, expiresAt, ipAddress, userAgent)
}

func (r *failingSessionRepo) FailWrites() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = true
}

type harness struct {
	clock    *fakeClock
	sessions *failingSessionRepo
	schools  repository.SchoolRepository
	limiter  *countingLimiter
	verifier *fakeVerifier
	advisory *Advisory
	hasher   *hash.TokenHasher

	sessionService *SessionService
	scoreService   *ScoreService
	clickService   *ClickService
	schoolService  *SchoolService
}

func newHarness(policies domain.Policies) *harness {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := &harness{
		clock:    clock,
		sessions: &failingSessionRepo{SessionRepository: memory.NewSessionRepository()},
		schools:  memory.NewSchoolRepository(),
		limiter:  &countingLimiter{Limiter: ratelimit.NewMemoryLimiterWithClock(clock.Now)},
		verifier: &fakeVerifier{},
		advisory: NewAdvisory(),
		hasher:   hash.NewTokenHasher("test-pepper"),
	}

	h.sessionService = NewSessionService(h.sessions, h.limiter, h.verifier, h.hasher, policies, SessionConfig{
		TTL:             6 * time.Hour,
		Friction:        domain.FrictionPolicy{Threshold: 3, BlockDuration: 15 * time.Minute},
		CaptchaProvider: "turnstile",
		CaptchaSiteKey:  "site-key",
	}, h.advisory)
	h.sessionService.SetClock(clock.Now)

	h.scoreService = NewScoreService(h.schools)
	h.clickService = NewClickService(h.sessionService, h.scoreService, h.limiter, policies)
	h.schoolService = NewSchoolService(h.schools, h.limiter, policies)
	return h
}

func (h *harness) seedSchool(id string, score int64) {
	now := h.clock.Now()
	_ = h.schools.Create(context.Background(), &domain.School{ID: id, Name: id, Score: score, CreatedAt: now, UpdatedAt: now})
}

func (h *harness) newToken(ip string) string {
	res, err := h.sessionService.Create(context.Background(), ip, "test-agent")
	if err != nil {
		panic(err)
	}
	return res.Token
}

func (h *harness) session(token string) *domain.Session {
	s, err := h.sessions.Get(context.Background(), h.hasher.Hash(token))
	if err != nil {
		panic(err)
	}
	return s
}

func (h *harness) score(id string) int64 {
	s, err := h.schools.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return s.Score
}
