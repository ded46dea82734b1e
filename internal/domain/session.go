package domain

import (
	"time"
)

const (
	FrictionReasonRateLimited   = "rate_limited"
	FrictionReasonCaptchaFailed = "captcha_failed"
)

// Session is one anonymous browser's right to submit clicks. ID is the keyed
// hash of the secret handed to the client; the secret itself is never stored.
type Session struct {
	ID                  string     `json:"-" db:"id"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt          time.Time  `json:"last_used_at" db:"last_used_at"`
	ExpiresAt           time.Time  `json:"expires_at" db:"expires_at"`
	IPAddress           string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent           string     `json:"user_agent,omitempty" db:"user_agent"`
	RequestCount        int64      `json:"request_count" db:"request_count"`
	FrictionLevel       int        `json:"friction_level" db:"friction_level"`
	BlockedUntil        *time.Time `json:"blocked_until,omitempty" db:"blocked_until"`
	LastFrictionReason  *string    `json:"last_friction_reason,omitempty" db:"last_friction_reason"`
	LastCaptchaSolvedAt *time.Time `json:"last_captcha_solved_at,omitempty" db:"last_captcha_solved_at"`
	RateLimitedAt       *time.Time `json:"rate_limited_at,omitempty" db:"rate_limited_at"`
	CaptchaFailures     int        `json:"captcha_failures" db:"captcha_failures"`
}

// FrictionKind tags the state a session is in with respect to score updates.
type FrictionKind int

const (
	FrictionActive FrictionKind = iota
	FrictionChallenge
	FrictionBlocked
)

func (k FrictionKind) String() string {
	switch k {
	case FrictionActive:
		return "active"
	case FrictionChallenge:
		return "friction"
	case FrictionBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// FrictionState is the derived, read-only view of a session's friction fields.
// Level is meaningful for FrictionChallenge, BlockedUntil for FrictionBlocked.
type FrictionState struct {
	Kind         FrictionKind
	Level        int
	BlockedUntil time.Time
}

// FrictionPolicy controls escalation: reaching Threshold blocks the session
// for BlockDuration.
type FrictionPolicy struct {
	Threshold     int
	BlockDuration time.Duration
}

// NewSession builds a fresh session with no friction.
func NewSession(id string, now time.Time, ttl time.Duration, ipAddress, userAgent string) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now.Add(ttl),
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	}
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) IsBlocked(now time.Time) bool {
	return s.BlockedUntil != nil && now.Before(*s.BlockedUntil)
}

// State reports the session's friction state at now. An active block always
// wins over any outstanding friction level.
func (s *Session) State(now time.Time) FrictionState {
	if s.IsBlocked(now) {
		return FrictionState{Kind: FrictionBlocked, Level: s.level(), BlockedUntil: *s.BlockedUntil}
	}
	if lvl := s.level(); lvl > 0 {
		return FrictionState{Kind: FrictionChallenge, Level: lvl}
	}
	return FrictionState{Kind: FrictionActive}
}

// Escalate records a session rate-limit violation and returns the resulting state.
func (s *Session) Escalate(now time.Time, policy FrictionPolicy) FrictionState {
	s.FrictionLevel = s.level() + 1
	s.RateLimitedAt = timePtr(now)
	s.LastFrictionReason = stringPtr(FrictionReasonRateLimited)

	if policy.Threshold > 0 && s.FrictionLevel >= policy.Threshold {
		// blocks only ever extend
		until := now.Add(policy.BlockDuration)
		if s.BlockedUntil == nil || until.After(*s.BlockedUntil) {
			s.BlockedUntil = timePtr(until)
		}
	}

	return s.State(now)
}

// Repay removes exactly one unit of friction after a solved challenge.
func (s *Session) Repay(now time.Time) {
	lvl := s.level() - 1
	if lvl < 0 {
		lvl = 0
	}
	s.FrictionLevel = lvl
	s.LastCaptchaSolvedAt = timePtr(now)
	s.LastFrictionReason = nil
}

// RecordCaptchaFailure notes a rejected challenge for auditing. It does not
// change the friction level.
func (s *Session) RecordCaptchaFailure() {
	s.CaptchaFailures++
	s.LastFrictionReason = stringPtr(FrictionReasonCaptchaFailed)
}

// Touch registers an accepted score update and extends the rolling expiry.
func (s *Session) Touch(now time.Time, ttl time.Duration, ipAddress, userAgent string) {
	s.RequestCount++
	s.LastUsedAt = now
	s.ExpiresAt = now.Add(ttl)
	if ipAddress != "" && ipAddress != s.IPAddress {
		s.IPAddress = ipAddress
	}
	if userAgent != "" && userAgent != s.UserAgent {
		s.UserAgent = userAgent
	}
}

// level clamps values loaded from storage so a corrupt row never yields
// negative friction.
func (s *Session) level() int {
	if s.FrictionLevel < 0 {
		return 0
	}
	return s.FrictionLevel
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(v string) *string {
	return &v
}
