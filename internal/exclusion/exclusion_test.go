package exclusion

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/proximity"
)

var station = geo.Point{Lat: 13.7563, Lon: 100.5018}

func north(km float64) geo.Point {
	return geo.Point{Lat: station.Lat + km/geo.KMPerDegree, Lon: station.Lon}
}

func TestBuild(t *testing.T) {
	candidates := []model.Candidate{
		{ID: "same", Point: station},
		{ID: "near", Point: north(0.3)},
		{ID: "far", Point: north(0.8)},
		{ID: "very-far", Point: north(30)},
	}

	tests := []struct {
		name     string
		existing []geo.Point
		minKM    float64
		want     []string
	}{
		{"default distance", []geo.Point{station}, 0.5, []string{"near", "same"}},
		{"zero distance", []geo.Point{station}, 0, []string{"same"}},
		{"wide distance", []geo.Point{station}, 1, []string{"far", "near", "same"}},
		{"no facilities", nil, 0.5, []string{}},
		{"facility elsewhere", []geo.Point{north(30)}, 0.5, []string{"very-far"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Build(context.Background(), candidates, tt.existing, tt.minKM)
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.IDs())
		})
	}
}

func TestBuild_CoincidentAlwaysExcluded(t *testing.T) {
	candidates := []model.Candidate{{ID: "a", Point: station}}
	for _, d := range []float64{0, 0.001, 0.5, 10} {
		set, err := Build(context.Background(), candidates, []geo.Point{station}, d)
		require.NoError(t, err)
		assert.True(t, set.Has("a"), "min distance %v", d)
	}
}

func TestBuild_NegativeDistance(t *testing.T) {
	_, err := Build(context.Background(), nil, nil, -1)
	assert.Error(t, err)
}

func TestBuild_Idempotent(t *testing.T) {
	candidates := []model.Candidate{{ID: "a", Point: station}, {ID: "b", Point: north(0.2)}}
	existing := []geo.Point{north(0.1)}

	first, err := Build(context.Background(), candidates, existing, 0.5)
	require.NoError(t, err)
	second, err := Build(context.Background(), candidates, existing, 0.5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_MatchesAllPairs(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 4))
	point := func() geo.Point {
		return geo.Point{Lat: 13.6 + rng.Float64()*0.2, Lon: 100.4 + rng.Float64()*0.2}
	}

	candidates := make([]model.Candidate, 1200)
	for i := range candidates {
		candidates[i] = model.Candidate{ID: fmt.Sprintf("c%04d", i), Point: point()}
	}
	existing := make([]geo.Point, 150)
	for i := range existing {
		existing[i] = point()
	}

	set, err := Build(context.Background(), candidates, existing, 0.5)
	require.NoError(t, err)

	for _, c := range candidates {
		want := proximity.AnyWithin(c.Point, existing, 0.5)
		assert.Equal(t, want, set.Has(c.ID), c.ID)
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidates := []model.Candidate{{ID: "a", Point: station}}
	_, err := Build(ctx, candidates, []geo.Point{station}, 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSet_Has(t *testing.T) {
	var s Set
	assert.False(t, s.Has("x"))
	s = Set{"x": {}}
	assert.True(t, s.Has("x"))
	assert.Equal(t, []string{"x"}, s.IDs())
}
