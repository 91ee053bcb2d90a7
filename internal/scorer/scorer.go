package scorer

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/proximity"
)

// minChunk is the smallest number of candidates handed to one worker.
const minChunk = 64

// Scorer computes neighbour and benefit scores for candidates.
type Scorer struct {
	cfg     config.ScoringConfig
	weights map[geo.Category]float64
	workers int
}

// New validates cfg and returns a Scorer.
func New(cfg config.ScoringConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scorer{
		cfg:     cfg,
		weights: categoryWeights(cfg),
		workers: workers,
	}, nil
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() config.ScoringConfig {
	return s.cfg
}

// Score runs ScoreNeighbours and then Fuse.
func (s *Scorer) Score(ctx context.Context, candidates []model.Candidate, refs model.ReferencePointSet, covariates []float64) error {
	if err := s.ScoreNeighbours(ctx, candidates, refs); err != nil {
		return err
	}
	s.Fuse(candidates, covariates)
	return nil
}

// ScoreNeighbours sets NeighbourScore on every candidate to the weighted sum
// of reference points within the configured radius, per category.
// Categories that are missing, empty or weighted 0 contribute nothing.
// Candidates are split into contiguous chunks scored in parallel; every
// candidate is written by exactly one worker.
func (s *Scorer) ScoreNeighbours(ctx context.Context, candidates []model.Candidate, refs model.ReferencePointSet) error {
	start := time.Now()
	log := zap.L().With(zap.String("component", "scorer"))

	type layer struct {
		weight float64
		index  *proximity.Index
	}
	var layers []layer
	for _, c := range geo.AllCategories {
		w := s.weights[c]
		if w == 0 || len(refs[c]) == 0 {
			continue
		}
		layers = append(layers, layer{weight: w, index: proximity.NewIndex(refs[c], s.cfg.RadiusKM)})
	}

	if len(layers) == 0 {
		for i := range candidates {
			candidates[i].NeighbourScore = 0
		}
		return nil
	}

	radius := s.cfg.RadiusKM
	chunk := chunkSize(len(candidates), s.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for lo := 0; lo < len(candidates); lo += chunk {
		hi := min(lo+chunk, len(candidates))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				var score float64
				for _, l := range layers {
					score += l.weight * float64(l.index.CountWithin(candidates[i].Point, radius))
				}
				candidates[i].NeighbourScore = score
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "scorer: score neighbours")
	}

	log.Debug("neighbour scores computed",
		zap.Int("candidates", len(candidates)),
		zap.Int("layers", len(layers)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Fuse sets PopulationCovariate and BenefitScore on every candidate.
// covariates is indexed like candidates; a short slice, NaN, infinite or
// negative value means no data and is treated as 0.
func (s *Scorer) Fuse(candidates []model.Candidate, covariates []float64) {
	for i := range candidates {
		var pop float64
		if i < len(covariates) {
			pop = Covariate(covariates[i])
		}
		candidates[i].PopulationCovariate = pop
		candidates[i].BenefitScore = s.cfg.PopulationWeight*pop + s.cfg.NeighbourWeight*candidates[i].NeighbourScore
	}
}

// Covariate normalises a sampled covariate value: anything that is not a
// finite non-negative number becomes 0.
func Covariate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func chunkSize(n, workers int) int {
	if workers < 1 {
		workers = 1
	}
	size := (n + workers*4 - 1) / (workers * 4)
	return max(size, minChunk)
}
