package milp

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// relaxation is the LP relaxation of one branch-and-bound node.
type relaxation struct {
	infeasible bool
	// bounded is false when no LP bound is available for the node.
	bounded bool
	bound   float64
	// x holds LP values for the free variables, in the order of free.
	x     []float64
	free  []int
	cost0 float64
}

type lpRow struct {
	coefs []float64
	sense Sense
	rhs   float64
}

// relax builds the node's LP in standard form and solves it:
//
//	min c·z  s.t.  A z = b, z >= 0
//
// with z = (y, t, s): y the free variables, t the upper-bound slacks
// (y_j + t_j = 1) and s one slack or surplus per inequality row. Rows with a
// negative right side are negated.
func relax(p *Problem, vals []int8, tol float64) (relaxation, error) {
	var rel relaxation

	col := make([]int, len(vals))
	var offset float64
	for i, v := range vals {
		col[i] = -1
		switch v {
		case unset:
			col[i] = len(rel.free)
			rel.free = append(rel.free, i)
		case 1:
			offset += p.cost[i]
		}
	}
	k := len(rel.free)
	if k == 0 {
		return rel, nil
	}
	rel.cost0 = p.cost[rel.free[0]]

	var rows []lpRow
	var ineq, eq int
	for _, c := range p.constraints {
		rhs, free := residual(c, vals)
		if len(free) == 0 {
			if !satisfied(0, c.Sense, rhs) {
				rel.infeasible = true
				return rel, nil
			}
			continue
		}

		var lo, hi float64
		coefs := make([]float64, k)
		for _, t := range free {
			coefs[col[t.Var]] = t.Coef
			if t.Coef < 0 {
				lo += t.Coef
			} else {
				hi += t.Coef
			}
		}
		if (c.Sense != LessEqual && !satisfied(hi, GreaterEqual, rhs)) ||
			(c.Sense != GreaterEqual && !satisfied(lo, LessEqual, rhs)) {
			rel.infeasible = true
			return rel, nil
		}

		rows = append(rows, lpRow{coefs: coefs, sense: c.Sense, rhs: rhs})
		if c.Sense == Equal {
			eq++
		} else {
			ineq++
		}
	}

	// With as many equality rows as free variables the standard form is
	// square or taller; skip the bound and let branching enumerate.
	if eq >= k {
		return rel, nil
	}

	m := len(rows) + k
	n := 2*k + ineq
	A := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	c := make([]float64, n)
	for j, v := range rel.free {
		c[j] = p.cost[v]
	}

	slack := 2 * k
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for j, a := range r.coefs {
			if a != 0 {
				A.Set(i, j, sign*a)
			}
		}
		switch r.sense {
		case LessEqual:
			A.Set(i, slack, sign)
			slack++
		case GreaterEqual:
			A.Set(i, slack, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}
	for j := range k {
		i := len(rows) + j
		A.Set(i, j, 1)
		A.Set(i, k+j, 1)
		b[i] = 1
	}

	opt, z, err := simplex(c, A, b, tol)
	switch {
	case err == nil:
		rel.bounded = true
		rel.bound = opt + offset
		rel.x = z[:k]
	case eris.Is(err, lp.ErrInfeasible):
		rel.infeasible = true
	case eris.Is(err, lp.ErrSingular), eris.Is(err, lp.ErrLinSolve), eris.Is(err, lp.ErrBland):
		// Ill-conditioned basis; branch without a bound.
	default:
		return rel, eris.Wrap(err, "milp: simplex")
	}
	return rel, nil
}

// simplex calls lp.Simplex, converting its input panics into errors.
func simplex(c []float64, A *mat.Dense, b []float64, tol float64) (opt float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("milp: simplex panic: %v", r)
		}
	}()
	return lp.Simplex(c, A, b, tol, nil)
}
