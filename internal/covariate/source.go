// Package covariate samples the population covariate at candidate
// locations. Sources return NaN where no value is available; the scorer
// treats NaN as zero.
package covariate

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/geo"
)

// Source returns one covariate value per point, in input order.
type Source interface {
	SampleAt(ctx context.Context, points []geo.Point) ([]float64, error)
}

// None is a Source with no data: every point samples as NaN.
type None struct{}

// SampleAt implements Source.
func (None) SampleAt(_ context.Context, points []geo.Point) ([]float64, error) {
	out := make([]float64, len(points))
	for i := range out {
		out[i] = math.NaN()
	}
	return out, nil
}

// Static returns caller-supplied values by position. It backs API requests
// that carry their own covariates.
type Static []float64

// SampleAt implements Source.
func (s Static) SampleAt(_ context.Context, points []geo.Point) ([]float64, error) {
	if len(s) != len(points) {
		return nil, eris.Errorf("covariate: static source has %d values for %d points", len(s), len(points))
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out, nil
}

// New builds the configured source. When a redis address and a cache TTL
// are set, grid and http sources are wrapped in a CachedSource. The
// returned close function releases the redis client, if any.
func New(ctx context.Context, cfg config.CovariateConfig, rc config.RedisConfig) (Source, func() error, error) {
	noop := func() error { return nil }

	var src Source
	switch cfg.Provider {
	case "", "none":
		return None{}, noop, nil
	case "grid":
		g, err := LoadGrid(cfg.Path, cfg.NoData)
		if err != nil {
			return nil, nil, err
		}
		src = g
	case "http":
		src = NewHTTPSource(cfg)
	default:
		return nil, nil, eris.Errorf("covariate: unknown provider %q", cfg.Provider)
	}

	if rc.Addr == "" || cfg.CacheTTLHours <= 0 {
		return src, noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, eris.Wrap(err, "covariate: connect redis")
	}
	zap.L().Info("covariate cache enabled",
		zap.String("addr", rc.Addr),
		zap.Int("ttl_hours", cfg.CacheTTLHours),
	)

	cached := NewCachedSource(src, client, time.Duration(cfg.CacheTTLHours)*time.Hour)
	return cached, client.Close, nil
}
