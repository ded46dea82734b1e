package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andressep95/clicker-service/internal/domain"
)

// relaxedPolicies keeps the per-IP limit out of the way so the per-session
// limit is the one that trips.
func relaxedPolicies() domain.Policies {
	p := domain.DefaultPolicies()
	p.ScoreIP.Points = 1000
	p.ScoreSession.Points = 3
	return p
}

func update(h *harness, token string, delta float64, captcha string) error {
	_, err := h.clickService.UpdateScore(context.Background(), "10.0.0.1", UpdateScoreRequest{
		SchoolID:     "mit",
		Delta:        delta,
		SessionToken: token,
		CaptchaToken: captcha,
	})
	return err
}

func TestUpdateScoreAcceptsFreshSession(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)
	token := h.newToken("10.0.0.1")

	res, err := h.clickService.UpdateScore(context.Background(), "10.0.0.1", UpdateScoreRequest{
		SchoolID:      "mit",
		Delta:         500,
		SessionToken:  token,
		ClientContext: &ClientContext{UserAgent: "agent/2"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(600), res.Score)
	assert.Equal(t, int64(600), h.score("mit"))

	s := h.session(token)
	assert.Equal(t, int64(1), s.RequestCount)
	assert.Equal(t, "agent/2", s.UserAgent)
	assert.Equal(t, h.clock.Now().Add(6*time.Hour), s.ExpiresAt)
}

func TestUpdateScoreRejectsDeltaBeforeStoreAccess(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)
	token := h.newToken("10.0.0.1")
	before := len(h.limiter.Consumed())

	err := update(h, token, -1500, "")

	assert.Equal(t, domain.StatusInvalidArgument, domain.StatusOf(err))
	assert.Equal(t, domain.CodeInvalidDelta, domain.CodeOf(err))
	assert.Len(t, h.limiter.Consumed(), before)
	assert.Equal(t, int64(100), h.score("mit"))
}

func TestUpdateScoreRejectsShortToken(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)

	err := update(h, "abc123", 1, "")

	assert.Equal(t, domain.StatusUnauthenticated, domain.StatusOf(err))
	assert.Empty(t, h.limiter.Consumed())
}

func TestUpdateScoreRejectsUnknownSession(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)
	token := h.newToken("10.0.0.1")
	forged := token[:len(token)-1] + "0"
	if forged == token {
		forged = token[:len(token)-1] + "1"
	}

	err := update(h, forged, 1, "")

	assert.Equal(t, domain.StatusUnauthenticated, domain.StatusOf(err))
	assert.Equal(t, domain.CodeSessionInvalid, domain.CodeOf(err))
}

func TestUpdateScoreInvalidArguments(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	token := h.newToken("10.0.0.1")

	_, err := h.clickService.UpdateScore(context.Background(), "10.0.0.1", UpdateScoreRequest{SchoolID: "  ", Delta: 1, SessionToken: token})
	assert.Equal(t, domain.StatusInvalidArgument, domain.StatusOf(err))

	for _, delta := range []float64{0, 1.5, 501, -1001} {
		err := update(h, token, delta, "")
		assert.Equal(t, domain.StatusInvalidArgument, domain.StatusOf(err), "delta %v", delta)
	}
}

func TestUpdateScoreIPLimit(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")

	for i := 0; i < 5; i++ {
		require.NoError(t, update(h, token, 1, ""))
	}

	err := update(h, token, 1, "")
	assert.Equal(t, domain.StatusResourceExhausted, domain.StatusOf(err))
	assert.Equal(t, domain.CodeRateLimited, domain.CodeOf(err))
	assert.Equal(t, 0, h.session(token).FrictionLevel)
}

func TestFrictionEscalatesAndIsRepaid(t *testing.T) {
	h := newHarness(relaxedPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")

	for i := 0; i < 3; i++ {
		require.NoError(t, update(h, token, 1, ""))
	}

	// first trip of the session limiter
	err := update(h, token, 1, "")
	assert.Equal(t, domain.StatusResourceExhausted, domain.StatusOf(err))
	assert.Equal(t, domain.CodeCaptchaRequired, domain.CodeOf(err))
	assert.Equal(t, 1, h.session(token).FrictionLevel)

	h.clock.Advance(time.Minute)

	// friction is owed: no token
	err = update(h, token, 1, "")
	assert.Equal(t, domain.StatusFailedPrecondition, domain.StatusOf(err))
	assert.Equal(t, domain.CodeCaptchaRequired, domain.CodeOf(err))

	// wrong token is recorded but does not change the level
	err = update(h, token, 1, "wrong")
	assert.Equal(t, domain.StatusPermissionDenied, domain.StatusOf(err))
	assert.Equal(t, domain.CodeCaptchaInvalid, domain.CodeOf(err))
	s := h.session(token)
	assert.Equal(t, 1, s.FrictionLevel)
	assert.Equal(t, 1, s.CaptchaFailures)

	// solving repays and the update goes through
	require.NoError(t, update(h, token, 1, "valid"))
	s = h.session(token)
	assert.Equal(t, 0, s.FrictionLevel)
	assert.NotNil(t, s.LastCaptchaSolvedAt)
	assert.Equal(t, int64(4), h.score("mit"))

	// no friction, no verifier call
	calls := h.verifier.Calls()
	require.NoError(t, update(h, token, 1, "valid"))
	assert.Equal(t, calls, h.verifier.Calls())
}

func TestThreeTripsBlockTheSession(t *testing.T) {
	h := newHarness(relaxedPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")
	ctx := context.Background()
	start := h.clock.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, update(h, token, 1, ""))
	}

	// trip 1 through the pipeline
	err := update(h, token, 1, "")
	assert.Equal(t, domain.CodeCaptchaRequired, domain.CodeOf(err))

	// trips 2 and 3 come from requests already past the challenge step
	err = h.sessionService.EscalateFriction(ctx, h.session(token))
	assert.Equal(t, domain.CodeCaptchaRequired, domain.CodeOf(err))
	assert.Equal(t, domain.StatusResourceExhausted, domain.StatusOf(err))

	err = h.sessionService.EscalateFriction(ctx, h.session(token))
	assert.Equal(t, domain.StatusResourceExhausted, domain.StatusOf(err))
	assert.Equal(t, domain.CodeTempBlock, domain.CodeOf(err))

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	require.NotNil(t, derr.BlockedUntil)
	assert.Equal(t, start.Add(15*time.Minute), *derr.BlockedUntil)

	// every call inside the window fails, even with a valid challenge
	h.clock.Advance(14 * time.Minute)
	err = update(h, token, 1, "valid")
	assert.Equal(t, domain.CodeTempBlock, domain.CodeOf(err))
	assert.Equal(t, 3, h.session(token).FrictionLevel)

	// once the block lapses the friction is still owed
	h.clock.Advance(time.Minute)
	err = update(h, token, 1, "")
	assert.Equal(t, domain.CodeCaptchaRequired, domain.CodeOf(err))

	require.NoError(t, update(h, token, 1, "valid"))
	assert.Equal(t, 2, h.session(token).FrictionLevel)
}

func TestUpdateScoreExpiredSession(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")

	h.clock.Advance(6*time.Hour + time.Second)

	err := update(h, token, 1, "")
	assert.Equal(t, domain.StatusUnauthenticated, domain.StatusOf(err))
	assert.Equal(t, domain.CodeSessionExpired, domain.CodeOf(err))

	// expired sessions are removed on sight
	err = update(h, token, 1, "")
	assert.Equal(t, domain.CodeSessionInvalid, domain.CodeOf(err))
}

func TestUpdateScoreIntegrityErrors(t *testing.T) {
	h := newHarness(relaxedPolicies())
	h.seedSchool("mit", domain.MaxScore-100)
	token := h.newToken("10.0.0.1")

	err := update(h, token, 500, "")
	assert.Equal(t, domain.StatusFailedPrecondition, domain.StatusOf(err))
	assert.Equal(t, domain.CodeScoreOutOfBounds, domain.CodeOf(err))
	assert.Equal(t, domain.MaxScore-100, h.score("mit"))
	assert.Equal(t, int64(0), h.session(token).RequestCount)

	_, err = h.clickService.UpdateScore(context.Background(), "10.0.0.1", UpdateScoreRequest{SchoolID: "ghost", Delta: 1, SessionToken: token})
	assert.Equal(t, domain.StatusNotFound, domain.StatusOf(err))
}

func TestUpdateScoreLimiterFailureIsInternal(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")
	h.limiter.err = errors.New("redis down")

	err := update(h, token, 1, "")
	assert.Equal(t, domain.StatusInternal, domain.StatusOf(err))
}

func TestAdvisoryFailureDoesNotMaskSuccess(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")
	h.sessions.FailWrites()

	require.NoError(t, update(h, token, 5, ""))
	assert.Equal(t, int64(5), h.score("mit"))
	assert.Equal(t, int64(1), h.advisory.Failures())
}

func TestEscalationWriteFailureIsInternal(t *testing.T) {
	h := newHarness(relaxedPolicies())
	h.seedSchool("mit", 0)
	token := h.newToken("10.0.0.1")
	for i := 0; i < 3; i++ {
		require.NoError(t, update(h, token, 1, ""))
	}
	h.sessions.FailWrites()

	err := update(h, token, 1, "")
	assert.Equal(t, domain.StatusInternal, domain.StatusOf(err))
}

func TestBlockDuringChallengeStopsTheMutation(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)
	token := h.newToken("10.0.0.1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.Error(t, h.sessionService.EscalateFriction(ctx, h.session(token)))
	}
	require.Equal(t, 2, h.session(token).FrictionLevel)

	// a concurrent request trips the limiter while this one waits on the captcha
	h.verifier.onVerify = func() {
		err := h.sessionService.EscalateFriction(ctx, h.session(token))
		require.Equal(t, domain.CodeTempBlock, domain.CodeOf(err))
	}

	err := update(h, token, 50, "valid")
	assert.Equal(t, domain.StatusResourceExhausted, domain.StatusOf(err))
	assert.Equal(t, domain.CodeTempBlock, domain.CodeOf(err))
	assert.Equal(t, int64(100), h.score("mit"))
	assert.Equal(t, int64(0), h.session(token).RequestCount)
}

func TestExpiryDuringChallengeStopsTheMutation(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("mit", 100)
	token := h.newToken("10.0.0.1")
	require.Error(t, h.sessionService.EscalateFriction(context.Background(), h.session(token)))

	// the captcha round trip outlives the session
	h.verifier.onVerify = func() {
		h.clock.Advance(6*time.Hour + time.Second)
	}

	err := update(h, token, 50, "valid")
	assert.Equal(t, domain.StatusUnauthenticated, domain.StatusOf(err))
	assert.Equal(t, domain.CodeSessionExpired, domain.CodeOf(err))
	assert.Equal(t, int64(100), h.score("mit"))
}
