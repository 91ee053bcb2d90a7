package covariate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/geo"
)

const cacheKeyPrefix = "siting:covariate:"

// CachedSource caches another source's samples in redis, keyed by
// coordinates rounded to 1e-6 degrees. A redis failure falls back to the
// inner source.
type CachedSource struct {
	inner  Source
	client *redis.Client
	ttl    time.Duration
}

// NewCachedSource wraps inner with a redis cache.
func NewCachedSource(inner Source, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, client: client, ttl: ttl}
}

func cacheKey(p geo.Point) string {
	return fmt.Sprintf("%s%.6f,%.6f", cacheKeyPrefix, p.Lat, p.Lon)
}

// SampleAt implements Source.
func (c *CachedSource) SampleAt(ctx context.Context, points []geo.Point) ([]float64, error) {
	if len(points) == 0 {
		return []float64{}, nil
	}
	log := zap.L().With(zap.String("component", "covariate_cache"))

	keys := make([]string, len(points))
	for i, p := range points {
		keys[i] = cacheKey(p)
	}

	out := make([]float64, len(points))
	var missIdx []int

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("covariate cache read failed, sampling directly", zap.Error(err))
		return c.inner.SampleAt(ctx, points)
	}
	for i, v := range cached {
		s, ok := v.(string)
		if !ok {
			missIdx = append(missIdx, i)
			continue
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = f
	}

	log.Debug("covariate cache lookup",
		zap.Int("points", len(points)),
		zap.Int("hits", len(points)-len(missIdx)),
	)
	if len(missIdx) == 0 {
		return out, nil
	}

	misses := make([]geo.Point, len(missIdx))
	for j, i := range missIdx {
		misses[j] = points[i]
	}
	vals, err := c.inner.SampleAt(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(vals) != len(misses) {
		return nil, eris.Errorf("covariate: source returned %d values for %d points", len(vals), len(misses))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = vals[j]
		pipe.Set(ctx, keys[i], formatValue(vals[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn("covariate cache write failed", zap.Error(err))
	}
	return out, nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
