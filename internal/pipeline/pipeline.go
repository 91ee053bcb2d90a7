// Package pipeline runs a siting job end to end: neighbour scoring,
// covariate sampling and fusion, exclusions, the selection solve and result
// assembly, recording progress in the run store when one is configured.
package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/covariate"
	"github.com/sells-group/siting-cli/internal/exclusion"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/result"
	"github.com/sells-group/siting-cli/internal/scorer"
	"github.com/sells-group/siting-cli/internal/selection"
	"github.com/sells-group/siting-cli/internal/store"
)

// Pipeline wires the siting stages together.
type Pipeline struct {
	scorer     *scorer.Scorer
	solver     *selection.Solver
	covariates covariate.Source
	store      store.Store
	cfg        config.SelectionConfig
	sortSites  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records every run in st.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithCovariateSource sets where population covariates are sampled.
// Without it every candidate gets covariate 0.
func WithCovariateSource(src covariate.Source) Option {
	return func(p *Pipeline) { p.covariates = src }
}

// WithSortedSites orders Output.Sites by descending benefit.
func WithSortedSites() Option {
	return func(p *Pipeline) { p.sortSites = true }
}

// New creates a Pipeline.
func New(sc *scorer.Scorer, solver *selection.Solver, cfg config.SelectionConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer: sc,
		solver: solver,
		cfg:    cfg,
	}
	for _, o := range opts {
		o(p)
	}
	if p.covariates == nil {
		p.covariates = covariate.None{}
	}
	return p
}

// Output is the result of one run.
type Output struct {
	RunID  string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Region string `json:"region" yaml:"region"`
	// Candidates holds every scored candidate tagged with Selected.
	Candidates []model.Candidate    `json:"candidates" yaml:"candidates"`
	Excluded   []string             `json:"excluded" yaml:"excluded"`
	Sites      []model.SelectedSite `json:"sites" yaml:"sites"`
	Objective  float64              `json:"objective" yaml:"objective"`
	NetBenefit float64              `json:"net_benefit" yaml:"net_benefit"`
	Nodes      int                  `json:"nodes" yaml:"nodes"`
	DurationMS int64                `json:"duration_ms" yaml:"duration_ms"`
}

// Params returns the run parameters recorded with each stored run.
func (p *Pipeline) Params() model.RunParams {
	return model.RunParams{
		RadiusKM:               p.scorer.Config().RadiusKM,
		FixedCost:              p.cfg.FixedCost,
		MinSelected:            p.cfg.MinSelected,
		MinExclusionDistanceKM: p.cfg.MinExclusionDistanceKM,
	}
}

// Score validates fs and returns scored copies of its candidates. fs is not
// modified.
func (p *Pipeline) Score(ctx context.Context, fs *model.FeatureSet) ([]model.Candidate, error) {
	if err := validate(fs); err != nil {
		return nil, err
	}
	return p.score(ctx, fs)
}

// Exclusions validates fs and returns the candidates too close to an
// existing facility.
func (p *Pipeline) Exclusions(ctx context.Context, fs *model.FeatureSet) (exclusion.Set, error) {
	if err := validate(fs); err != nil {
		return nil, err
	}
	return exclusion.Build(ctx, fs.Candidates, fs.Existing, p.cfg.MinExclusionDistanceKM)
}

// Run executes every stage for fs. Invalid input fails before a run record
// is created. Solver failures keep their selection sentinel and mark the
// stored run infeasible or failed.
func (p *Pipeline) Run(ctx context.Context, fs *model.FeatureSet) (*Output, error) {
	if err := validate(fs); err != nil {
		return nil, err
	}

	start := time.Now()
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("region", fs.Region))
	log.Info("pipeline: starting run",
		zap.Int("candidates", len(fs.Candidates)),
		zap.Int("existing", len(fs.Existing)),
	)

	out := &Output{Region: fs.Region}

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, fs.Region, p.Params())
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		out.RunID = runID
	}

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(err))
		}
	}

	fail := func(err error) error {
		if p.store != nil {
			status := model.RunStatusFailed
			if eris.Is(err, selection.ErrInfeasible) {
				status = model.RunStatusInfeasible
			}
			// Record the outcome even when ctx was cancelled.
			if ferr := p.store.FailRun(context.WithoutCancel(ctx), runID, status, err.Error()); ferr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(ferr))
			}
		}
		log.Error("pipeline: run failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return err
	}

	phase := func(name string, fn func() error) error {
		phaseStart := time.Now()
		err := fn()
		duration := time.Since(phaseStart).Milliseconds()
		if err != nil {
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", duration), zap.Error(err))
			return err
		}
		log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", duration))
		return nil
	}

	// ===== Scoring =====
	setStatus(model.RunStatusScoring)
	var candidates []model.Candidate
	if err := phase("scoring", func() error {
		var err error
		candidates, err = p.score(ctx, fs)
		return err
	}); err != nil {
		return nil, fail(err)
	}

	// ===== Exclusions =====
	setStatus(model.RunStatusExcluding)
	var excluded exclusion.Set
	if err := phase("exclusions", func() error {
		var err error
		excluded, err = exclusion.Build(ctx, candidates, fs.Existing, p.cfg.MinExclusionDistanceKM)
		return err
	}); err != nil {
		return nil, fail(err)
	}
	out.Excluded = excluded.IDs()
	log.Info("pipeline: exclusions built", zap.Int("excluded", len(excluded)))

	// ===== Selection =====
	setStatus(model.RunStatusSolving)
	var sel *selection.Result
	if err := phase("selection", func() error {
		var err error
		sel, err = p.solver.Solve(ctx, candidates, excluded, p.cfg.FixedCost, p.cfg.MinSelected)
		return err
	}); err != nil {
		return nil, fail(err)
	}

	// ===== Assembly =====
	var opts []result.Option
	if p.sortSites {
		opts = append(opts, result.SortByBenefit())
	}
	out.Sites = result.Assemble(candidates, sel.Assignment, opts...)
	out.Candidates = result.Tag(candidates, sel.Assignment)
	out.Objective = sel.Objective
	out.NetBenefit = sel.NetBenefit()
	out.Nodes = sel.Nodes
	out.DurationMS = time.Since(start).Milliseconds()

	if p.store != nil {
		res := &model.RunResult{
			Candidates: len(candidates),
			Excluded:   sel.Excluded,
			Selected:   sel.Selected,
			Objective:  sel.Objective,
			Nodes:      sel.Nodes,
			Sites:      out.Sites,
			DurationMS: out.DurationMS,
		}
		if err := p.store.CompleteRun(ctx, runID, model.RunStatusComplete, res); err != nil {
			return nil, fail(eris.Wrap(err, "pipeline: complete run"))
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("excluded", len(excluded)),
		zap.Int("selected", len(out.Sites)),
		zap.Float64("objective", out.Objective),
		zap.Int("nodes", out.Nodes),
		zap.Int64("duration_ms", out.DurationMS),
	)
	return out, nil
}

// score runs neighbour scoring on a fresh copy of the candidates, then
// samples and fuses the covariate.
func (p *Pipeline) score(ctx context.Context, fs *model.FeatureSet) ([]model.Candidate, error) {
	candidates := slices.Clone(fs.Candidates)
	if err := p.scorer.ScoreNeighbours(ctx, candidates, fs.Reference); err != nil {
		return nil, eris.Wrap(err, "pipeline: score neighbours")
	}

	covariates, err := p.covariates.SampleAt(ctx, model.Points(candidates))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: sample covariates")
	}
	if len(covariates) != len(candidates) {
		zap.L().Warn("pipeline: covariate count mismatch, missing values treated as 0",
			zap.Int("candidates", len(candidates)),
			zap.Int("covariates", len(covariates)),
		)
	}
	p.scorer.Fuse(candidates, covariates)
	return candidates, nil
}

func validate(fs *model.FeatureSet) error {
	if fs == nil {
		return eris.New("pipeline: nil feature set")
	}
	if err := fs.Validate(); err != nil {
		return eris.Wrap(err, "pipeline: invalid features")
	}
	return nil
}
