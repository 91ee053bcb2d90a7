// Package selection builds and solves the site selection integer program:
// one binary per candidate, minimise Σ (fixedCost - benefit_i) y_i subject to
// excluded candidates fixed at 0 and at least minSelected sites chosen.
package selection

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/exclusion"
	"github.com/sells-group/siting-cli/internal/milp"
	"github.com/sells-group/siting-cli/internal/model"
)

// Failure kinds returned by Solve. Check with eris.Is.
var (
	ErrInfeasible     = eris.New("selection: infeasible problem")
	ErrSolverTimeout  = eris.New("selection: solver timeout")
	ErrSolverInternal = eris.New("selection: solver internal error")
)

// Engine solves a binary program.
type Engine interface {
	Solve(ctx context.Context, p *milp.Problem) (*milp.Solution, error)
}

// Result is a solved selection. Assignment holds every candidate ID;
// excluded candidates are always false.
type Result struct {
	Assignment map[string]bool
	Objective  float64
	Selected   int
	Excluded   int
	Nodes      int
}

// NetBenefit is Σ (benefit_i - fixedCost) over the selected sites.
func (r *Result) NetBenefit() float64 {
	return -r.Objective
}

// Solver wraps an Engine with a timeout.
type Solver struct {
	engine  Engine
	timeout time.Duration
}

// Option configures a Solver.
type Option func(*Solver)

// WithEngine replaces the default branch-and-bound engine.
func WithEngine(e Engine) Option {
	return func(s *Solver) { s.engine = e }
}

// WithTimeout bounds each solve. Zero means no limit beyond the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(s *Solver) { s.timeout = d }
}

// NewSolver returns a Solver using milp.BranchAndBound unless WithEngine is
// given.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{}
	for _, o := range opts {
		o(s)
	}
	if s.engine == nil {
		s.engine = milp.NewBranchAndBound(milp.Options{})
	}
	return s
}

// Solve picks the subset of candidates that minimises total fixed cost minus
// total benefit, selecting at least minSelected and none of excluded.
// Candidates are read only.
//
// Infeasibility, timeout and engine failure are reported as ErrInfeasible,
// ErrSolverTimeout and ErrSolverInternal. Cancelling ctx returns its error.
// When several assignments are optimal the objective is reproducible but
// the chosen IDs depend on the engine.
func (s *Solver) Solve(ctx context.Context, candidates []model.Candidate, excluded exclusion.Set, fixedCost float64, minSelected int) (*Result, error) {
	if math.IsNaN(fixedCost) || math.IsInf(fixedCost, 0) {
		return nil, eris.Errorf("selection: fixed cost must be finite, got %v", fixedCost)
	}
	if minSelected < 0 {
		return nil, eris.Errorf("selection: min selected must be >= 0, got %d", minSelected)
	}

	eligible := 0
	excludedCount := 0
	for _, c := range candidates {
		if excluded.Has(c.ID) {
			excludedCount++
		} else {
			eligible++
		}
	}
	if minSelected > eligible {
		return nil, eris.Wrapf(ErrInfeasible, "min selected %d exceeds %d eligible candidates (%d excluded)",
			minSelected, eligible, excludedCount)
	}

	p, err := buildProblem(candidates, excluded, fixedCost, minSelected)
	if err != nil {
		return nil, err
	}

	solveCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	sol, err := s.engine.Solve(solveCtx, p)
	elapsed := time.Since(start)
	log := zap.L().With(zap.String("component", "selection"))

	if err != nil {
		log.Error("solver failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, eris.Wrapf(ErrSolverInternal, "%v", err)
	}
	if sol == nil {
		return nil, eris.Wrap(ErrSolverInternal, "engine returned no solution")
	}

	switch sol.Status {
	case milp.StatusOptimal:
	case milp.StatusInfeasible:
		return nil, eris.Wrapf(ErrInfeasible, "engine proved infeasibility after %d nodes", sol.Nodes)
	case milp.StatusTimeout:
		if ctxErr := ctx.Err(); eris.Is(ctxErr, context.Canceled) {
			return nil, eris.Wrap(ctxErr, "selection: solve cancelled")
		}
		log.Warn("solver timed out", zap.Duration("timeout", s.timeout), zap.Int("nodes", sol.Nodes))
		return nil, eris.Wrapf(ErrSolverTimeout, "no proven optimum after %s (%d nodes)", elapsed.Round(time.Millisecond), sol.Nodes)
	default:
		return nil, eris.Wrapf(ErrSolverInternal, "engine status %s", sol.Status)
	}

	if len(sol.Values) != len(candidates) {
		return nil, eris.Wrapf(ErrSolverInternal, "engine returned %d values for %d candidates", len(sol.Values), len(candidates))
	}

	res := &Result{
		Assignment: make(map[string]bool, len(candidates)),
		Objective:  sol.Objective,
		Excluded:   excludedCount,
		Nodes:      sol.Nodes,
	}
	for i, c := range candidates {
		on := sol.Values[i] && !excluded.Has(c.ID)
		res.Assignment[c.ID] = on
		if on {
			res.Selected++
		}
	}

	log.Info("selection solved",
		zap.Int("candidates", len(candidates)),
		zap.Int("excluded", excludedCount),
		zap.Int("selected", res.Selected),
		zap.Float64("objective", res.Objective),
		zap.Int("nodes", res.Nodes),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// buildProblem declares one binary per candidate, in candidate order.
func buildProblem(candidates []model.Candidate, excluded exclusion.Set, fixedCost float64, minSelected int) (*milp.Problem, error) {
	p := milp.NewProblem()
	cover := make([]milp.Term, 0, len(candidates))

	for _, c := range candidates {
		v, err := p.AddBinary(c.ID, fixedCost-c.BenefitScore)
		if err != nil {
			return nil, eris.Wrapf(err, "selection: candidate %q", c.ID)
		}
		cover = append(cover, milp.Term{Var: v, Coef: 1})

		if excluded.Has(c.ID) {
			err := p.AddConstraint(milp.Constraint{
				Name:  "exclude_" + c.ID,
				Terms: []milp.Term{{Var: v, Coef: 1}},
				Sense: milp.Equal,
				RHS:   0,
			})
			if err != nil {
				return nil, eris.Wrap(err, "selection: exclusion constraint")
			}
		}
	}

	if err := p.AddConstraint(milp.Constraint{
		Name:  "min_selected",
		Terms: cover,
		Sense: milp.GreaterEqual,
		RHS:   float64(minSelected),
	}); err != nil {
		return nil, eris.Wrap(err, "selection: coverage constraint")
	}
	return p, nil
}
