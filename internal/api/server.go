// Package api serves siting runs over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/covariate"
	"github.com/sells-group/siting-cli/internal/features"
	"github.com/sells-group/siting-cli/internal/pipeline"
	"github.com/sells-group/siting-cli/internal/scorer"
	"github.com/sells-group/siting-cli/internal/selection"
	"github.com/sells-group/siting-cli/internal/store"
)

// maxBodyBytes bounds optimize request bodies.
const maxBodyBytes = 32 << 20

// Server handles the siting API.
type Server struct {
	scorer     *scorer.Scorer
	selection  config.SelectionConfig
	features   features.Source
	covariates covariate.Source
	store      store.Store
	validate   *validator.Validate

	origins []string
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithFeatures lets optimize requests name a region instead of sending
// features inline.
func WithFeatures(src features.Source) Option {
	return func(s *Server) { s.features = src }
}

// WithCovariates sets the covariate source used when a request carries no
// population values.
func WithCovariates(src covariate.Source) Option {
	return func(s *Server) { s.covariates = src }
}

// WithStore records runs and enables the /v1/runs endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithServerConfig applies CORS origins and the request timeout.
func WithServerConfig(c config.ServerConfig) Option {
	return func(s *Server) {
		s.origins = c.AllowedOrigins
		if c.RequestTimeoutSecs > 0 {
			s.timeout = time.Duration(c.RequestTimeoutSecs) * time.Second
		}
	}
}

// New creates a Server. sel holds the default selection parameters that
// requests may override.
func New(sc *scorer.Scorer, sel config.SelectionConfig, opts ...Option) *Server {
	s := &Server{
		scorer:    sc,
		selection: sel,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		origins:   []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.timeout > 0 {
				r.Use(middleware.Timeout(s.timeout))
			}
			r.Post("/optimize", s.handleOptimize)
		})
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

func (s *Server) pipeline(sel config.SelectionConfig, cov covariate.Source, sorted bool) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithCovariateSource(cov)}
	if s.store != nil {
		opts = append(opts, pipeline.WithStore(s.store))
	}
	if sorted {
		opts = append(opts, pipeline.WithSortedSites())
	}
	return pipeline.New(s.scorer, selection.FromConfig(sel), sel, opts...)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
