package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/repository"
	"github.com/andressep95/clicker-service/pkg/captcha"
	"github.com/andressep95/clicker-service/pkg/hash"
	"github.com/andressep95/clicker-service/pkg/ratelimit"
)

type SessionConfig struct {
	TTL             time.Duration
	Friction        domain.FrictionPolicy
	CaptchaProvider string
	CaptchaSiteKey  string
}

// SessionService owns the session lifecycle: issuance, validation, friction
// escalation and repayment, and activity bookkeeping.
type SessionService struct {
	sessionRepo repository.SessionRepository
	limiter     ratelimit.Limiter
	verifier    captcha.Verifier
	hasher      *hash.TokenHasher
	policies    domain.Policies
	cfg         SessionConfig
	advisory    *Advisory
	now         func() time.Time
}

type CreateSessionResult struct {
	Token           string
	ExpiresAt       time.Time
	CaptchaProvider string
	CaptchaSiteKey  string
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	limiter ratelimit.Limiter,
	verifier captcha.Verifier,
	hasher *hash.TokenHasher,
	policies domain.Policies,
	cfg SessionConfig,
	advisory *Advisory,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		limiter:     limiter,
		verifier:    verifier,
		hasher:      hasher,
		policies:    policies,
		cfg:         cfg,
		advisory:    advisory,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source (tests)
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// Create issues a new anonymous session for clientIP. The returned token is
// the only copy of the secret; the store keeps its hash.
func (s *SessionService) Create(ctx context.Context, clientIP, userAgent string) (*CreateSessionResult, error) {
	// Check creation rate per address
	allowed, err := s.limiter.Consume(ctx, limiterKey(clientIP), s.policies.SessionCreate)
	if err != nil {
		return nil, domain.Internal("failed to check rate limit", err)
	}
	if !allowed {
		log.Printf("[SESSION] Session creation throttled for %s", clientIP)
		return nil, domain.RateLimited("too many sessions created, try again later")
	}

	token, err := hash.GenerateToken()
	if err != nil {
		return nil, domain.Internal("failed to generate session token", err)
	}

	// Store only the hash; the raw token leaves with the response
	now := s.now()
	session := domain.NewSession(s.hasher.Hash(token), now, s.cfg.TTL, clientIP, userAgent)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, domain.Internal("failed to store session", err)
	}

	return &CreateSessionResult{
		Token:           token,
		ExpiresAt:       session.ExpiresAt,
		CaptchaProvider: s.cfg.CaptchaProvider,
		CaptchaSiteKey:  s.cfg.CaptchaSiteKey,
	}, nil
}

// Validate loads the session behind token. Expired sessions are deleted on
// sight; blocked sessions are rejected regardless of friction.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.Unauthenticated(domain.CodeSessionInvalid, "session token is required")
	}

	return s.load(ctx, s.hasher.Hash(token))
}

// Recheck re-reads the session by id and rejects it if it expired or was
// blocked since it was last loaded. Run it right before a score mutation.
func (s *SessionService) Recheck(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	return s.load(ctx, session.ID)
}

func (s *SessionService) load(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessionRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Unauthenticated(domain.CodeSessionInvalid, "session not found")
		}
		return nil, domain.Internal("failed to load session", err)
	}

	now := s.now()

	// Expired sessions are gone for good
	if session.IsExpired(now) {
		s.advisory.Write(ctx, "delete expired session", func(ctx context.Context) error {
			return s.sessionRepo.Delete(ctx, session.ID)
		})
		return nil, domain.Unauthenticated(domain.CodeSessionExpired, "session expired")
	}

	// An active block wins over any friction level
	if state := session.State(now); state.Kind == domain.FrictionBlocked {
		return nil, domain.TempBlock(state.BlockedUntil)
	}

	return session, nil
}

// ApplyChallenge repays one unit of friction when captchaToken verifies.
// Sessions without friction pass through untouched.
func (s *SessionService) ApplyChallenge(ctx context.Context, session *domain.Session, captchaToken, clientIP string) error {
	if session.FrictionLevel <= 0 {
		return nil
	}

	if captchaToken == "" {
		return domain.CaptchaRequired(domain.StatusFailedPrecondition, "captcha required to continue")
	}

	if !s.verifier.Verify(ctx, captchaToken, clientIP) {
		// Audit only, friction stays where it is
		s.advisory.Write(ctx, "record captcha failure", func(ctx context.Context) error {
			return s.sessionRepo.RecordCaptchaFailure(ctx, session.ID)
		})
		return domain.CaptchaInvalid()
	}

	updated, err := s.sessionRepo.Repay(ctx, session.ID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Unauthenticated(domain.CodeSessionInvalid, "session not found")
		}
		return domain.Internal("failed to update session friction", err)
	}
	*session = *updated

	return nil
}

// EscalateFriction is called after the per-session limiter refused a request.
// It always returns the throttling error the client should see.
func (s *SessionService) EscalateFriction(ctx context.Context, session *domain.Session) error {
	now := s.now()
	updated, err := s.sessionRepo.Escalate(ctx, session.ID, now, s.cfg.Friction)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Unauthenticated(domain.CodeSessionInvalid, "session not found")
		}
		return domain.Internal("failed to update session friction", err)
	}
	*session = *updated

	state := session.State(now)
	if state.Kind == domain.FrictionBlocked {
		log.Printf("[SESSION] Session blocked until %s (friction=%d)", state.BlockedUntil.Format(time.RFC3339), state.Level)
		return domain.TempBlock(state.BlockedUntil)
	}

	return domain.CaptchaRequired(domain.StatusResourceExhausted, "slow down, captcha required to continue")
}

// RegisterActivity records an accepted score update and extends the session
func (s *SessionService) RegisterActivity(ctx context.Context, session *domain.Session, clientIP, userAgent string) {
	now := s.now()
	s.advisory.Write(ctx, "register session activity", func(ctx context.Context) error {
		return s.sessionRepo.Touch(ctx, session.ID, now, now.Add(s.cfg.TTL), clientIP, userAgent)
	})
}

// CleanupExpired removes sessions that expired without being looked up again
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, s.now())
}

func limiterKey(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}
	return clientIP
}
