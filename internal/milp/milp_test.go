package milp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build declares one binary per cost and returns the problem.
func build(t *testing.T, costs ...float64) *Problem {
	t.Helper()
	p := NewProblem()
	for i, c := range costs {
		_, err := p.AddBinary(fmt.Sprintf("x%d", i), c)
		require.NoError(t, err)
	}
	return p
}

func all(p *Problem, coef float64) []Term {
	terms := make([]Term, p.NumVars())
	for i := range terms {
		terms[i] = Term{Var: i, Coef: coef}
	}
	return terms
}

func solve(t *testing.T, p *Problem) *Solution {
	t.Helper()
	sol, err := NewBranchAndBound(Options{}).Solve(context.Background(), p)
	require.NoError(t, err)
	return sol
}

func selected(sol *Solution) []int {
	var out []int
	for i, on := range sol.Values {
		if on {
			out = append(out, i)
		}
	}
	return out
}

func TestProblem_AddBinary(t *testing.T) {
	p := NewProblem()
	i, err := p.AddBinary("a", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = p.AddBinary("a", 2)
	assert.Error(t, err)

	_, err = p.AddBinary("b", math.NaN())
	assert.Error(t, err)

	v, ok := p.Var("a")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, "a", p.Name(0))
	assert.Equal(t, 1, p.NumVars())
}

func TestProblem_AddConstraint(t *testing.T) {
	p := build(t, 1, 2)

	assert.Error(t, p.AddConstraint(Constraint{Name: "bad var", Terms: []Term{{Var: 5, Coef: 1}}, Sense: LessEqual}))
	assert.Error(t, p.AddConstraint(Constraint{Name: "bad sense", Terms: []Term{{Var: 0, Coef: 1}}, Sense: Sense(9)}))
	assert.Error(t, p.AddConstraint(Constraint{Name: "bad rhs", Terms: []Term{{Var: 0, Coef: 1}}, RHS: math.Inf(1)}))
	assert.Error(t, p.AddConstraint(Constraint{Name: "bad coef", Terms: []Term{{Var: 0, Coef: math.NaN()}}}))
	assert.Equal(t, 0, p.NumConstraints())

	require.NoError(t, p.AddConstraint(Constraint{
		Name:  "merged",
		Terms: []Term{{Var: 0, Coef: 1}, {Var: 0, Coef: 2}, {Var: 1, Coef: 1}, {Var: 1, Coef: -1}},
		Sense: LessEqual,
		RHS:   3,
	}))
	assert.Equal(t, []Term{{Var: 0, Coef: 3}}, p.constraints[0].Terms)
}

func TestSenseAndStatusString(t *testing.T) {
	assert.Equal(t, "<=", LessEqual.String())
	assert.Equal(t, ">=", GreaterEqual.String())
	assert.Equal(t, "=", Equal.String())
	assert.Equal(t, "optimal", StatusOptimal.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
	assert.Equal(t, "timeout", StatusTimeout.String())
	assert.Equal(t, "error", StatusError.String())
}

func TestSolve_Cardinality(t *testing.T) {
	tests := []struct {
		name    string
		costs   []float64
		sense   Sense
		rhs     float64
		want    []int
		wantObj float64
	}{
		{"at least two", []float64{-15, -5, 5, 15, 25}, GreaterEqual, 2, []int{0, 1}, -20},
		{"at least two forces positive", []float64{-15, 5, 15, 25}, GreaterEqual, 2, []int{0, 1}, -10},
		{"at least zero", []float64{1, 2, 3}, GreaterEqual, 0, nil, 0},
		{"at most two", []float64{-3, -2, -1}, LessEqual, 2, []int{0, 1}, -5},
		{"exactly one", []float64{4, 2, 3}, Equal, 1, []int{1}, 2},
		{"unsorted input", []float64{25, -5, 15, -15, 5}, GreaterEqual, 2, []int{1, 3}, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, tt.costs...)
			require.NoError(t, p.AddConstraint(Constraint{Name: "card", Terms: all(p, 1), Sense: tt.sense, RHS: tt.rhs}))

			sol := solve(t, p)
			require.Equal(t, StatusOptimal, sol.Status)
			assert.Equal(t, tt.want, selected(sol))
			assert.InDelta(t, tt.wantObj, sol.Objective, 1e-9)
		})
	}
}

func TestSolve_CardinalityTiesPreferLowerIndex(t *testing.T) {
	p := build(t, 1, 1, 1, 1)
	require.NoError(t, p.AddConstraint(Constraint{Terms: all(p, 1), Sense: GreaterEqual, RHS: 2}))

	sol := solve(t, p)
	assert.Equal(t, []int{0, 1}, selected(sol))
}

func TestSolve_NoConstraints(t *testing.T) {
	p := build(t, -1, 2, -3, 0)
	sol := solve(t, p)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, []int{0, 2}, selected(sol))
	assert.InDelta(t, -4, sol.Objective, 1e-9)
}

func TestSolve_EmptyProblem(t *testing.T) {
	sol := solve(t, NewProblem())
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.Empty(t, sol.Values)
	assert.Zero(t, sol.Objective)
}

func TestSolve_PresolveFixes(t *testing.T) {
	p := build(t, -15, -5, 5, 15, 25)
	require.NoError(t, p.AddConstraint(Constraint{Name: "fix0", Terms: []Term{{Var: 0, Coef: 1}}, Sense: Equal, RHS: 0}))
	require.NoError(t, p.AddConstraint(Constraint{Name: "card", Terms: all(p, 1), Sense: GreaterEqual, RHS: 2}))

	sol := solve(t, p)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, []int{1, 2}, selected(sol))
	assert.InDelta(t, 0, sol.Objective, 1e-9)
}

func TestSolve_Infeasible(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *Problem) error
	}{
		{"cardinality too large", func(p *Problem) error {
			return p.AddConstraint(Constraint{Terms: all(p, 1), Sense: GreaterEqual, RHS: 4})
		}},
		{"fractional equality", func(p *Problem) error {
			return p.AddConstraint(Constraint{Terms: all(p, 1), Sense: Equal, RHS: 1.5})
		}},
		{"conflicting fixes", func(p *Problem) error {
			if err := p.AddConstraint(Constraint{Terms: []Term{{Var: 0, Coef: 1}}, Sense: Equal, RHS: 0}); err != nil {
				return err
			}
			return p.AddConstraint(Constraint{Terms: []Term{{Var: 0, Coef: 1}}, Sense: Equal, RHS: 1})
		}},
		{"non-binary fix", func(p *Problem) error {
			return p.AddConstraint(Constraint{Terms: []Term{{Var: 1, Coef: 2}}, Sense: Equal, RHS: 1})
		}},
		{"exclusions leave too few", func(p *Problem) error {
			for v := range 2 {
				if err := p.AddConstraint(Constraint{Terms: []Term{{Var: v, Coef: 1}}, Sense: Equal, RHS: 0}); err != nil {
					return err
				}
			}
			return p.AddConstraint(Constraint{Terms: all(p, 1), Sense: GreaterEqual, RHS: 2})
		}},
		{"general infeasible", func(p *Problem) error {
			if err := p.AddConstraint(Constraint{Terms: []Term{{Var: 0, Coef: 1}, {Var: 1, Coef: 1}}, Sense: GreaterEqual, RHS: 2}); err != nil {
				return err
			}
			return p.AddConstraint(Constraint{Terms: []Term{{Var: 0, Coef: 1}, {Var: 2, Coef: 1}}, Sense: LessEqual, RHS: 0})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, 1, 2, 3)
			require.NoError(t, tt.setup(p))
			sol := solve(t, p)
			assert.Equal(t, StatusInfeasible, sol.Status)
		})
	}
}

func TestSolve_Knapsack(t *testing.T) {
	values := []float64{10, 13, 7, 8}
	weights := []float64{3, 4, 2, 3}

	p := NewProblem()
	var terms []Term
	for i, v := range values {
		idx, err := p.AddBinary(fmt.Sprintf("item%d", i), -v)
		require.NoError(t, err)
		terms = append(terms, Term{Var: idx, Coef: weights[i]})
	}
	require.NoError(t, p.AddConstraint(Constraint{Name: "capacity", Terms: terms, Sense: LessEqual, RHS: 7}))

	sol := solve(t, p)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, []int{0, 1}, selected(sol))
	assert.InDelta(t, -23, sol.Objective, 1e-9)
	assert.Positive(t, sol.Nodes)
}

func TestSolve_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	senses := []Sense{LessEqual, GreaterEqual, Equal}

	for iter := range 60 {
		n := 3 + rng.IntN(6)
		costs := make([]float64, n)
		for i := range costs {
			costs[i] = float64(rng.IntN(21) - 10)
		}
		p := build(t, costs...)

		rows := 1 + rng.IntN(3)
		for range rows {
			var terms []Term
			var sum float64
			for v := range n {
				if rng.IntN(3) == 0 {
					continue
				}
				c := float64(rng.IntN(9) - 3)
				terms = append(terms, Term{Var: v, Coef: c})
				if rng.IntN(2) == 0 {
					sum += c
				}
			}
			sense := senses[rng.IntN(len(senses))]
			if sense == Equal && rng.IntN(2) == 0 {
				sense = LessEqual
			}
			require.NoError(t, p.AddConstraint(Constraint{Terms: terms, Sense: sense, RHS: sum}))
		}

		wantObj, feasible := bruteForce(p)
		sol := solve(t, p)
		if !feasible {
			assert.Equal(t, StatusInfeasible, sol.Status, "iteration %d", iter)
			continue
		}
		require.Equal(t, StatusOptimal, sol.Status, "iteration %d", iter)
		assert.True(t, p.Feasible(sol.Values), "iteration %d", iter)
		assert.InDelta(t, wantObj, sol.Objective, 1e-6, "iteration %d", iter)
	}
}

func TestSolve_CancelledContext(t *testing.T) {
	p := build(t, -1, -2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol, err := NewBranchAndBound(Options{}).Solve(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, sol.Status)
}

func TestSolve_NodeLimit(t *testing.T) {
	values := []float64{10, 13, 7, 8, 9, 4}
	weights := []float64{3, 4, 2, 3, 5, 1}

	p := NewProblem()
	var terms []Term
	for i, v := range values {
		idx, err := p.AddBinary(fmt.Sprintf("item%d", i), -v)
		require.NoError(t, err)
		terms = append(terms, Term{Var: idx, Coef: weights[i]})
	}
	require.NoError(t, p.AddConstraint(Constraint{Terms: terms, Sense: LessEqual, RHS: 9}))

	sol, err := NewBranchAndBound(Options{MaxNodes: 1}).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, sol.Status)
	assert.Equal(t, 1, sol.Nodes)
}

// bruteForce enumerates every assignment.
func bruteForce(p *Problem) (float64, bool) {
	n := p.NumVars()
	best, found := math.Inf(1), false
	x := make([]bool, n)
	for mask := range 1 << n {
		for i := range n {
			x[i] = mask&(1<<i) != 0
		}
		if !p.Feasible(x) {
			continue
		}
		if obj := p.Objective(x); obj < best {
			best, found = obj, true
		}
	}
	return best, found
}
