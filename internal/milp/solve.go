package milp

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	feasTol  = 1e-9
	intTol   = 1e-6
	pruneTol = 1e-9

	defaultLPTol = 1e-10

	unset int8 = -1
)

// Status is the outcome of a solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Solution is the result of Solve. Values is indexed by variable. On
// StatusTimeout it holds the best assignment found so far, if any.
type Solution struct {
	Status    Status
	Values    []bool
	Objective float64
	Nodes     int
}

// Options tunes the branch-and-bound search.
type Options struct {
	// MaxNodes stops the search after this many nodes with StatusTimeout.
	// Zero means no limit.
	MaxNodes int
	// Tolerance is passed to the simplex solver. Zero uses 1e-10.
	Tolerance float64
}

// BranchAndBound solves binary programs exactly. Problems reduced by
// presolve to a single unit-coefficient cardinality constraint are solved by
// sorting; everything else goes through depth-first branch-and-bound over LP
// relaxations.
type BranchAndBound struct {
	opts Options
}

// NewBranchAndBound returns a solver with the given options.
func NewBranchAndBound(opts Options) *BranchAndBound {
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultLPTol
	}
	return &BranchAndBound{opts: opts}
}

// Solve minimises p. The context is checked before every node; when it is
// done the search stops with StatusTimeout. A non-nil error is returned
// only together with StatusError.
func (b *BranchAndBound) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if ctx.Err() != nil {
		return &Solution{Status: StatusTimeout}, nil
	}

	fixed, ok := presolve(p)
	if !ok {
		return &Solution{Status: StatusInfeasible}, nil
	}

	if sol, ok := solveCardinality(p, fixed); ok {
		return sol, nil
	}

	return b.search(ctx, p, fixed)
}

// presolve fixes variables forced by the constraints and reports false when
// the problem is infeasible.
func presolve(p *Problem) ([]int8, bool) {
	vals := make([]int8, p.NumVars())
	for i := range vals {
		vals[i] = unset
	}
	return vals, propagate(p, vals)
}

// propagate repeatedly fixes the variable of any constraint with a single
// free variable that only one value satisfies. It reports false when a
// constraint can no longer be met.
func propagate(p *Problem, vals []int8) bool {
	for changed := true; changed; {
		changed = false
		for _, c := range p.constraints {
			rhs, free := residual(c, vals)
			switch len(free) {
			case 0:
				if !satisfied(0, c.Sense, rhs) {
					return false
				}
			case 1:
				ok0 := satisfied(0, c.Sense, rhs)
				ok1 := satisfied(free[0].Coef, c.Sense, rhs)
				switch {
				case !ok0 && !ok1:
					return false
				case ok0 && !ok1:
					vals[free[0].Var] = 0
					changed = true
				case ok1 && !ok0:
					vals[free[0].Var] = 1
					changed = true
				}
			}
		}
	}
	return true
}

// residual returns the constraint's right side after substituting fixed
// variables, and its terms over unfixed variables.
func residual(c Constraint, vals []int8) (float64, []Term) {
	rhs := c.RHS
	var free []Term
	for _, t := range c.Terms {
		switch vals[t.Var] {
		case 1:
			rhs -= t.Coef
		case unset:
			free = append(free, t)
		}
	}
	return rhs, free
}

// solveCardinality handles problems whose only remaining constraint is
// Σ x_i (sense) k over every free variable, or that have no remaining
// constraints. Taking the cheapest variables first is optimal there. The
// sort is stable, so ties resolve to the lower variable index.
func solveCardinality(p *Problem, vals []int8) (*Solution, bool) {
	var freeVars []int
	for i, v := range vals {
		if v == unset {
			freeVars = append(freeVars, i)
		}
	}

	lower, upper := 0, len(freeVars)
	active := 0
	for _, c := range p.constraints {
		rhs, free := residual(c, vals)
		if len(free) == 0 {
			continue
		}
		active++
		if active > 1 || len(free) != len(freeVars) {
			return nil, false
		}
		for _, t := range free {
			if t.Coef != 1 {
				return nil, false
			}
		}
		switch c.Sense {
		case GreaterEqual:
			lower = int(math.Ceil(rhs - intTol))
		case LessEqual:
			upper = int(math.Floor(rhs + intTol))
		case Equal:
			k := math.Round(rhs)
			if math.Abs(rhs-k) > intTol {
				return &Solution{Status: StatusInfeasible}, true
			}
			lower, upper = int(k), int(k)
		}
	}

	lower = max(lower, 0)
	upper = min(upper, len(freeVars))
	if lower > upper {
		return &Solution{Status: StatusInfeasible}, true
	}

	order := slices.Clone(freeVars)
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(p.cost[a], p.cost[b])
	})

	x := toBools(vals)
	for k, v := range order {
		if k >= upper || (k >= lower && p.cost[v] >= 0) {
			break
		}
		x[v] = true
	}
	return &Solution{Status: StatusOptimal, Values: x, Objective: p.Objective(x)}, true
}

func (b *BranchAndBound) search(ctx context.Context, p *Problem, root []int8) (*Solution, error) {
	var (
		best    []bool
		bestObj = math.Inf(1)
		nodes   int
	)
	stack := [][]int8{root}

	done := func(status Status) *Solution {
		sol := &Solution{Status: status, Values: best, Nodes: nodes}
		if best != nil {
			sol.Objective = bestObj
		}
		return sol
	}
	offer := func(x []bool) {
		if !p.Feasible(x) {
			return
		}
		if obj := p.Objective(x); obj < bestObj-pruneTol*math.Max(1, math.Abs(bestObj)) || best == nil {
			best, bestObj = x, obj
		}
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return done(StatusTimeout), nil
		}
		if b.opts.MaxNodes > 0 && nodes >= b.opts.MaxNodes {
			zap.L().Warn("milp: node limit reached", zap.Int("nodes", nodes))
			return done(StatusTimeout), nil
		}

		vals := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		if !propagate(p, vals) {
			continue
		}

		rel, err := relax(p, vals, b.opts.Tolerance)
		if err != nil {
			return done(StatusError), eris.Wrapf(err, "milp: relaxation at node %d", nodes)
		}
		if rel.infeasible {
			continue
		}
		if len(rel.free) == 0 {
			offer(toBools(vals))
			continue
		}
		if best != nil && rel.bounded && rel.bound >= bestObj-pruneTol*math.Max(1, math.Abs(bestObj)) {
			continue
		}

		v, up := branchVar(rel)
		if v < 0 {
			// Integral relaxation.
			x := toBools(vals)
			for j, fv := range rel.free {
				x[fv] = rel.x[j] > 0.5
			}
			if p.Feasible(x) {
				offer(x)
				continue
			}
			v, up = rel.free[0], true
		}

		zero := slices.Clone(vals)
		zero[v] = 0
		one := slices.Clone(vals)
		one[v] = 1
		if up {
			stack = append(stack, zero, one)
		} else {
			stack = append(stack, one, zero)
		}
	}

	if best == nil {
		return &Solution{Status: StatusInfeasible, Nodes: nodes}, nil
	}
	return done(StatusOptimal), nil
}

// branchVar picks the most fractional free variable of the relaxation and
// which branch to explore first. It returns -1 when the relaxation is
// integral. Without a usable relaxation it branches on the first free
// variable, preferring 1 when that lowers the objective.
func branchVar(rel relaxation) (int, bool) {
	if !rel.bounded {
		return rel.free[0], rel.cost0 < 0
	}
	bestVar, bestFrac, up := -1, intTol, false
	for j, x := range rel.x {
		frac := math.Abs(x - math.Round(x))
		if frac > bestFrac {
			bestVar, bestFrac, up = rel.free[j], frac, x >= 0.5
		}
	}
	return bestVar, up
}

func toBools(vals []int8) []bool {
	x := make([]bool, len(vals))
	for i, v := range vals {
		x[i] = v == 1
	}
	return x
}
