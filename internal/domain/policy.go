package domain

import (
	"time"

	"github.com/andressep95/clicker-service/pkg/ratelimit"
)

// Rate-limit policy names. Each name is its own counter namespace.
const (
	PolicySessionCreate = "session_create"
	PolicySchoolCreate  = "school_create"
	PolicyScoreIP       = "score_ip"
	PolicyScoreSession  = "score_session"
)

// Policies is the set of limits the score pipeline enforces.
type Policies struct {
	SessionCreate ratelimit.Policy
	SchoolCreate  ratelimit.Policy
	ScoreIP       ratelimit.Policy
	ScoreSession  ratelimit.Policy
}

func DefaultPolicies() Policies {
	return Policies{
		SessionCreate: ratelimit.Policy{Name: PolicySessionCreate, Points: 5, Window: time.Minute},
		SchoolCreate:  ratelimit.Policy{Name: PolicySchoolCreate, Points: 3, Window: time.Hour},
		ScoreIP:       ratelimit.Policy{Name: PolicyScoreIP, Points: 5, Window: time.Minute},
		ScoreSession:  ratelimit.Policy{Name: PolicyScoreSession, Points: 20, Window: time.Minute},
	}
}
