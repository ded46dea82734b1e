package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andressep95/clicker-service/internal/domain"
)

func TestValidateDelta(t *testing.T) {
	valid := []float64{1, -1, 500, -1000, 42}
	for _, d := range valid {
		got, err := ValidateDelta(d)
		require.NoError(t, err, "delta %v", d)
		assert.Equal(t, int64(d), got)
	}

	invalid := []float64{0, 0.5, -2.25, 501, -1001, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, d := range invalid {
		_, err := ValidateDelta(d)
		assert.Equal(t, domain.StatusInvalidArgument, domain.StatusOf(err), "delta %v", d)
		assert.Equal(t, domain.CodeInvalidDelta, domain.CodeOf(err))
	}
}

func TestApplyNearAggregateFloor(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	h.seedSchool("low", domain.MinScore+500)

	// within the per-call floor but past the aggregate floor
	_, err := h.scoreService.Apply(context.Background(), "low", -1000)
	assert.Equal(t, domain.StatusFailedPrecondition, domain.StatusOf(err))
	assert.Equal(t, domain.MinScore+500, h.score("low"))

	score, err := h.scoreService.Apply(context.Background(), "low", -500)
	require.NoError(t, err)
	assert.Equal(t, domain.MinScore, score)
}

func TestCreateSchool(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	ctx := context.Background()

	school, err := h.schoolService.Create(ctx, "10.0.0.1", CreateSchoolRequest{Name: "  Lincoln   High "})
	require.NoError(t, err)
	assert.Equal(t, "lincolnhigh", school.ID)
	assert.Equal(t, "Lincoln High", school.Name)
	assert.Equal(t, int64(0), school.Score)

	_, err = h.schoolService.Create(ctx, "10.0.0.2", CreateSchoolRequest{Name: "LINCOLN-HIGH"})
	assert.Equal(t, domain.StatusAlreadyExists, domain.StatusOf(err))
	assert.Equal(t, domain.CodeSchoolExists, domain.CodeOf(err))

	_, err = h.schoolService.Create(ctx, "10.0.0.2", CreateSchoolRequest{Name: "!!!"})
	assert.Equal(t, domain.StatusInvalidArgument, domain.StatusOf(err))
}

func TestCreateSchoolLimitPerIP(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	ctx := context.Background()

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := h.schoolService.Create(ctx, "10.0.0.1", CreateSchoolRequest{Name: name})
		require.NoError(t, err)
	}

	_, err := h.schoolService.Create(ctx, "10.0.0.1", CreateSchoolRequest{Name: "Delta"})
	assert.Equal(t, domain.CodeRateLimited, domain.CodeOf(err))
}

func TestListAndGetSchools(t *testing.T) {
	h := newHarness(domain.DefaultPolicies())
	ctx := context.Background()
	h.seedSchool("a", 5)
	h.seedSchool("b", 50)

	list, err := h.schoolService.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	_, err = h.schoolService.Get(ctx, "missing")
	assert.Equal(t, domain.StatusNotFound, domain.StatusOf(err))

	got, err := h.schoolService.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Score)
}
