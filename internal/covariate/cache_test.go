package covariate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/geo"
)

// countingSource returns the longitude of each point and records calls.
type countingSource struct {
	calls  int
	points int
}

func (c *countingSource) SampleAt(_ context.Context, points []geo.Point) ([]float64, error) {
	c.calls++
	c.points += len(points)
	out := make([]float64, len(points))
	for i, p := range points {
		if p.Lon == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = p.Lon
	}
	return out, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedSource_MissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	inner := &countingSource{}
	src := NewCachedSource(inner, client, time.Hour)

	pts := []geo.Point{{Lat: 13.1, Lon: 100.1}, {Lat: 13.2, Lon: 0}}
	first, err := src.SampleAt(context.Background(), pts)
	require.NoError(t, err)
	assert.Equal(t, 100.1, first[0])
	assert.True(t, math.IsNaN(first[1]))
	assert.Equal(t, 1, inner.calls)

	assert.True(t, mr.Exists(cacheKey(pts[0])))
	ttl := mr.TTL(cacheKey(pts[0]))
	assert.Equal(t, time.Hour, ttl)

	second, err := src.SampleAt(context.Background(), pts)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second lookup is served from cache")
	assert.Equal(t, 100.1, second[0])
	assert.True(t, math.IsNaN(second[1]), "no-data values are cached too")
}

func TestCachedSource_PartialHit(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &countingSource{}
	src := NewCachedSource(inner, client, time.Hour)

	_, err := src.SampleAt(context.Background(), []geo.Point{{Lat: 1, Lon: 101}})
	require.NoError(t, err)

	vals, err := src.SampleAt(context.Background(), []geo.Point{
		{Lat: 2, Lon: 102},
		{Lat: 1, Lon: 101},
		{Lat: 3, Lon: 103},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 101, 103}, vals)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 3, inner.points, "only the two misses reach the inner source")
}

func TestCachedSource_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	inner := &countingSource{}
	src := NewCachedSource(inner, client, time.Hour)
	vals, err := src.SampleAt(context.Background(), []geo.Point{{Lat: 1, Lon: 101}})
	require.NoError(t, err)
	assert.Equal(t, []float64{101}, vals)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSource_Empty(t *testing.T) {
	_, client := newTestRedis(t)
	inner := &countingSource{}
	vals, err := NewCachedSource(inner, client, time.Hour).SampleAt(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vals)
	assert.Zero(t, inner.calls)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "siting:covariate:13.756300,100.501800", cacheKey(geo.Point{Lat: 13.7563, Lon: 100.5018}))
}
