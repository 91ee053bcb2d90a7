package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/covariate"
	"github.com/sells-group/siting-cli/internal/db"
	"github.com/sells-group/siting-cli/internal/features"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/pipeline"
	"github.com/sells-group/siting-cli/internal/scorer"
	"github.com/sells-group/siting-cli/internal/selection"
	"github.com/sells-group/siting-cli/internal/store"
)

// siteEnv holds the initialized sources, store and scorer needed by the
// optimize/score/exclusions/serve commands.
type siteEnv struct {
	Store      store.Store     // may be nil
	Features   features.Source // may be nil
	Covariates covariate.Source
	Scorer     *scorer.Scorer

	closers []func() error
}

// Close releases resources held by the environment.
func (e *siteEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

// Pipeline builds a pipeline over the environment.
func (e *siteEnv) Pipeline(sel config.SelectionConfig, sorted bool) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithCovariateSource(e.Covariates)}
	if e.Store != nil {
		opts = append(opts, pipeline.WithStore(e.Store))
	}
	if sorted {
		opts = append(opts, pipeline.WithSortedSites())
	}
	return pipeline.New(e.Scorer, selection.FromConfig(sel), sel, opts...)
}

// LoadFeatures loads region from the configured feature source.
func (e *siteEnv) LoadFeatures(ctx context.Context, region string) (*model.FeatureSet, error) {
	if e.Features == nil {
		return nil, eris.New("no feature source configured (set --features or features.path)")
	}
	fs, err := e.Features.Load(ctx, region)
	if err != nil {
		return nil, eris.Wrapf(err, "load features for %q", region)
	}
	return fs, nil
}

// initEnv validates the scoring and selection config and opens the store
// (when withStore is set and a driver is configured), the feature source and
// the covariate source. Callers should defer env.Close().
func initEnv(ctx context.Context, withStore bool) (*siteEnv, error) {
	if err := selection.ValidateConfig(cfg.Selection); err != nil {
		return nil, err
	}
	sc, err := scorer.New(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	env := &siteEnv{Scorer: sc}

	if withStore {
		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return nil, eris.Wrap(err, "open store")
		}
		if st != nil {
			env.Store = st
			env.closers = append(env.closers, st.Close)
			if err := st.Migrate(ctx); err != nil {
				env.Close()
				return nil, eris.Wrap(err, "migrate store")
			}
		}
	}

	if err := env.initFeatures(ctx); err != nil {
		env.Close()
		return nil, err
	}

	cov, closeCov, err := covariate.New(ctx, cfg.Covariate, cfg.Redis)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init covariate source")
	}
	env.Covariates = cov
	env.closers = append(env.closers, closeCov)

	zap.L().Info("environment ready",
		zap.String("features", cfg.Features.Source),
		zap.String("covariate", cfg.Covariate.Provider),
		zap.Bool("store", env.Store != nil),
	)
	return env, nil
}

func (e *siteEnv) initFeatures(ctx context.Context) error {
	switch cfg.Features.Source {
	case "postgres":
		pool, err := e.featurePool(ctx)
		if err != nil {
			return err
		}
		src, err := features.New(cfg.Features, pool)
		if err != nil {
			return err
		}
		e.Features = src
	default:
		if cfg.Features.Path == "" {
			zap.L().Debug("no feature path configured, inline features only")
			return nil
		}
		src, err := features.New(cfg.Features, nil)
		if err != nil {
			return err
		}
		e.Features = src
	}
	return nil
}

// featurePool shares the store's pool when the store is postgres, otherwise
// it opens one on store.database_url.
func (e *siteEnv) featurePool(ctx context.Context) (db.Pool, error) {
	if ps, ok := e.Store.(*store.PostgresStore); ok {
		zap.L().Info("feature source using shared database pool")
		return ps.Pool(), nil
	}
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("features.source postgres needs store.database_url")
	}
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() error { pool.Close(); return nil })
	return pool, nil
}
