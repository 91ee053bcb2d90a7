// Package milp models and solves small binary integer programs: named 0/1
// variables, a linear objective to minimise and linear constraints.
package milp

import (
	"math"

	"github.com/rotisserie/eris"
)

// Sense is the relation of a constraint's left side to its right side.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return "?"
}

// Term is coef * x[Var].
type Term struct {
	Var  int
	Coef float64
}

// Constraint is Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a binary program: minimise Σ cost_i x_i, x_i ∈ {0,1}.
type Problem struct {
	names       []string
	index       map[string]int
	cost        []float64
	constraints []Constraint
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{index: make(map[string]int)}
}

// AddBinary declares a 0/1 variable with objective coefficient cost and
// returns its index. Names must be unique.
func (p *Problem) AddBinary(name string, cost float64) (int, error) {
	if _, dup := p.index[name]; dup {
		return 0, eris.Errorf("milp: duplicate variable %q", name)
	}
	if !finite(cost) {
		return 0, eris.Errorf("milp: variable %q has non-finite cost %v", name, cost)
	}
	i := len(p.names)
	p.names = append(p.names, name)
	p.cost = append(p.cost, cost)
	p.index[name] = i
	return i, nil
}

// AddConstraint registers a constraint. Every term must reference a
// declared variable.
func (p *Problem) AddConstraint(c Constraint) error {
	if c.Sense < LessEqual || c.Sense > Equal {
		return eris.Errorf("milp: constraint %q has unknown sense %d", c.Name, c.Sense)
	}
	if !finite(c.RHS) {
		return eris.Errorf("milp: constraint %q has non-finite rhs", c.Name)
	}
	for _, t := range c.Terms {
		if t.Var < 0 || t.Var >= len(p.names) {
			return eris.Errorf("milp: constraint %q references unknown variable %d", c.Name, t.Var)
		}
		if !finite(t.Coef) {
			return eris.Errorf("milp: constraint %q has non-finite coefficient on %q", c.Name, p.names[t.Var])
		}
	}
	c.Terms = mergeTerms(c.Terms)
	p.constraints = append(p.constraints, c)
	return nil
}

// NumVars returns the number of declared variables.
func (p *Problem) NumVars() int { return len(p.names) }

// NumConstraints returns the number of registered constraints.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

// Name returns the name of variable i.
func (p *Problem) Name(i int) string { return p.names[i] }

// Var looks up a variable by name.
func (p *Problem) Var(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// Objective evaluates the objective at x.
func (p *Problem) Objective(x []bool) float64 {
	var sum float64
	for i, on := range x {
		if on {
			sum += p.cost[i]
		}
	}
	return sum
}

// Feasible reports whether x satisfies every constraint.
func (p *Problem) Feasible(x []bool) bool {
	for _, c := range p.constraints {
		var lhs float64
		for _, t := range c.Terms {
			if x[t.Var] {
				lhs += t.Coef
			}
		}
		if !satisfied(lhs, c.Sense, c.RHS) {
			return false
		}
	}
	return true
}

// mergeTerms sums duplicate variables and drops zero coefficients.
func mergeTerms(terms []Term) []Term {
	out := make([]Term, 0, len(terms))
	pos := make(map[int]int, len(terms))
	for _, t := range terms {
		if j, ok := pos[t.Var]; ok {
			out[j].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

func satisfied(lhs float64, s Sense, rhs float64) bool {
	tol := feasTol * math.Max(1, math.Abs(rhs))
	switch s {
	case LessEqual:
		return lhs <= rhs+tol
	case GreaterEqual:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
