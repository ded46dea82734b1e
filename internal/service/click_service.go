package service

import (
	"context"
	"log"
	"strings"

	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/pkg/hash"
	"github.com/andressep95/clicker-service/pkg/ratelimit"
)

const maxSchoolIDLength = 100

type ClientContext struct {
	UserAgent string `json:"userAgent,omitempty" validate:"omitempty,max=512,printable"`
}

type UpdateScoreRequest struct {
	SchoolID      string         `json:"schoolId"`
	Delta         float64        `json:"delta"`
	SessionToken  string         `json:"sessionToken"`
	CaptchaToken  string         `json:"captchaToken,omitempty" validate:"omitempty,max=4096"`
	ClientContext *ClientContext `json:"clientContext,omitempty"`
}

type UpdateScoreResult struct {
	Success bool  `json:"success"`
	Score   int64 `json:"-"`
}

// ClickService composes rate limiting, session friction and score mutation
// into the single score update operation exposed to clients.
type ClickService struct {
	sessionService *SessionService
	scoreService   *ScoreService
	limiter        ratelimit.Limiter
	policies       domain.Policies
}

func NewClickService(
	sessionService *SessionService,
	scoreService *ScoreService,
	limiter ratelimit.Limiter,
	policies domain.Policies,
) *ClickService {
	return &ClickService{
		sessionService: sessionService,
		scoreService:   scoreService,
		limiter:        limiter,
		policies:       policies,
	}
}

// UpdateScore runs the pipeline in order and stops at the first failure.
// Side effects of earlier steps (consumed rate limit, friction changes) are
// never rolled back.
func (s *ClickService) UpdateScore(ctx context.Context, clientIP string, req UpdateScoreRequest) (*UpdateScoreResult, error) {
	// 1. argument shape
	schoolID := strings.TrimSpace(req.SchoolID)
	if schoolID == "" || len(schoolID) > maxSchoolIDLength {
		return nil, domain.InvalidArgument(domain.CodeInvalidSchool, "schoolId is required")
	}
	if _, err := ValidateDelta(req.Delta); err != nil {
		return nil, err
	}

	// 2. token shape
	if !hash.ValidTokenFormat(req.SessionToken) {
		return nil, domain.Unauthenticated(domain.CodeSessionInvalid, "a valid session token is required")
	}

	// 3. per-IP limit
	allowed, err := s.limiter.Consume(ctx, limiterKey(clientIP), s.policies.ScoreIP)
	if err != nil {
		return nil, domain.Internal("failed to check rate limit", err)
	}
	if !allowed {
		return nil, domain.RateLimited("too many requests from this address, slow down")
	}

	// 4. session validity (expiry, block)
	session, err := s.sessionService.Validate(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}

	// 5. outstanding friction must be repaid first
	if err := s.sessionService.ApplyChallenge(ctx, session, req.CaptchaToken, clientIP); err != nil {
		return nil, err
	}

	// 6. per-session limit, escalating on violation
	allowed, err = s.limiter.Consume(ctx, session.ID, s.policies.ScoreSession)
	if err != nil {
		return nil, domain.Internal("failed to check rate limit", err)
	}
	if !allowed {
		log.Printf("[CLICK] Session rate limit tripped (ip=%s friction=%d)", clientIP, session.FrictionLevel)
		return nil, s.sessionService.EscalateFriction(ctx, session)
	}

	// 7. fresh read, another request may have blocked the session meanwhile
	session, err = s.sessionService.Recheck(ctx, session)
	if err != nil {
		return nil, err
	}

	// 8. bounded atomic mutation
	score, err := s.scoreService.Apply(ctx, schoolID, req.Delta)
	if err != nil {
		return nil, err
	}

	// 9. durable success bookkeeping
	userAgent := ""
	if req.ClientContext != nil {
		userAgent = req.ClientContext.UserAgent
	}
	s.sessionService.RegisterActivity(ctx, session, clientIP, userAgent)

	return &UpdateScoreResult{Success: true, Score: score}, nil
}
