package covariate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/resilience"
)

type samplePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type sampleRequest struct {
	Points []samplePoint `json:"points"`
}

// A null value means no data.
type sampleResponse struct {
	Values []*float64 `json:"values"`
}

// HTTPSource samples a raster service that accepts
// POST {"points":[{"lat","lon"}]} and answers {"values":[...]}.
// Requests are batched, rate limited, retried on transient failures and
// guarded by a circuit breaker.
type HTTPSource struct {
	url       string
	client    *http.Client
	batchSize int
	noData    float64
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker
}

// NewHTTPSource builds an HTTPSource from config.
func NewHTTPSource(cfg config.CovariateConfig) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	retry, breaker := resilience.FromCovariateConfig(cfg)
	return &HTTPSource{
		url:       cfg.URL,
		client:    &http.Client{Timeout: timeout},
		batchSize: batch,
		noData:    cfg.NoData,
		limiter:   rate.NewLimiter(limit, 1),
		retry:     retry,
		breaker:   resilience.NewBreaker(breaker),
	}
}

// SampleAt implements Source.
func (s *HTTPSource) SampleAt(ctx context.Context, points []geo.Point) ([]float64, error) {
	out := make([]float64, 0, len(points))
	for start := 0; start < len(points); start += s.batchSize {
		end := min(start+s.batchSize, len(points))
		batch := points[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "covariate: rate limit wait")
		}
		vals, err := resilience.Call(ctx, s.breaker, func(ctx context.Context) ([]float64, error) {
			return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]float64, error) {
				return s.fetch(ctx, batch)
			})
		})
		if err != nil {
			return nil, eris.Wrapf(err, "covariate: sample batch %d-%d", start, end)
		}
		out = append(out, vals...)
	}

	zap.L().Debug("covariate: sampled points",
		zap.String("component", "covariate"),
		zap.Int("points", len(points)),
	)
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, batch []geo.Point) ([]float64, error) {
	req := sampleRequest{Points: make([]samplePoint, len(batch))}
	for i, p := range batch {
		req.Points[i] = samplePoint{Lat: p.Lat, Lon: p.Lon}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "covariate: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "covariate: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "covariate: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resilience.HTTPStatusError("covariate", resp.StatusCode, string(msg))
	}

	var decoded sampleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, eris.Wrap(err, "covariate: decode response")
	}
	if len(decoded.Values) != len(batch) {
		return nil, eris.Errorf("covariate: got %d values for %d points", len(decoded.Values), len(batch))
	}

	vals := make([]float64, len(batch))
	for i, v := range decoded.Values {
		if v == nil || *v == s.noData {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = *v
	}
	return vals, nil
}
