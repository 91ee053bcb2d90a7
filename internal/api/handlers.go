package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/selection"
	"github.com/sells-group/siting-cli/internal/store"
)

// errBadRequest marks client errors found outside struct validation.
var errBadRequest = eris.New("api: bad request")

var errNoStore = eris.New("api: run history is disabled")

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, eris.Wrapf(errBadRequest, "invalid request body: %v", err))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	sel := req.selection(s.selection)
	if err := selection.ValidateConfig(sel); err != nil {
		writeError(w, eris.Wrapf(errBadRequest, "%v", err))
		return
	}

	ctx := r.Context()
	fs, err := s.loadFeatures(ctx, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	cov := s.covariates
	if vals, ok := req.covariates(); ok {
		cov = vals
	}

	out, err := s.pipeline(sel, cov, req.SortByBenefit).Run(ctx, fs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadFeatures(ctx context.Context, req *OptimizeRequest) (*model.FeatureSet, error) {
	if req.inline() {
		return req.featureSet(), nil
	}
	if s.features == nil {
		return nil, eris.Wrap(errBadRequest, "request has no features and no feature source is configured")
	}
	fs, err := s.features.Load(ctx, req.Region)
	if err != nil {
		return nil, eris.Wrapf(err, "api: load region %q", req.Region)
	}
	return fs, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errNoStore)
		return
	}

	q := r.URL.Query()
	filter := model.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Region: q.Get("region"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, eris.Wrapf(errBadRequest, "limit: %v", err))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, eris.Wrapf(errBadRequest, "offset: %v", err))
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errNoStore)
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("must be a non-negative integer, got %q", v)
	}
	return n, nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr), eris.Is(err, errBadRequest), eris.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, selection.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case eris.Is(err, selection.ErrSolverTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case eris.Is(err, errNoStore):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
