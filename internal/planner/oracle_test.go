package planner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAgreesWithExactOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(13)
		values := make([]int64, n)
		for j := range values {
			values[j] = int64(rng.Intn(21) - 10)
		}
		want, err := PlanExact(values)
		require.NoError(t, err)
		assert.Equal(t, want, Plan(values), "values=%v", values)
	}
}

func TestPlanExactScenarios(t *testing.T) {
	cases := []struct {
		values []int64
		want   int
	}{
		{[]int64{4, -8, 3}, 2},
		{[]int64{6, -5, -3, -2}, 3},
		{[]int64{100, -50, -30, -20}, 4},
		{[]int64{}, 0},
		{[]int64{-1, -2, -3}, 0},
	}
	for _, tc := range cases {
		got, err := PlanExact(tc.values)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "values=%v", tc.values)
	}
}

func TestPlanExactRejectsLargeInput(t *testing.T) {
	values := make([]int64, MaxExactStops+1)
	_, err := PlanExact(values)
	assert.Error(t, err)
	_, err = PlanExactOrdered(values)
	assert.Error(t, err)
}

func TestOrderedVariantDiverges(t *testing.T) {
	// Under the route order the -1 must be settled before the 2, so only one
	// stop fits; with free settlement order both do.
	values := []int64{-1, 2}
	free, err := PlanExact(values)
	require.NoError(t, err)
	ordered, err := PlanExactOrdered(values)
	require.NoError(t, err)
	assert.Equal(t, 2, free)
	assert.Equal(t, 1, ordered)
	assert.Equal(t, free, Plan(values))
}

func TestOrderedNeverExceedsFreeOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 300; i++ {
		n := rng.Intn(11)
		values := make([]int64, n)
		for j := range values {
			values[j] = int64(rng.Intn(15) - 7)
		}
		free, err := PlanExact(values)
		require.NoError(t, err)
		ordered, err := PlanExactOrdered(values)
		require.NoError(t, err)
		assert.LessOrEqual(t, ordered, free, "values=%v", values)
	}
}
