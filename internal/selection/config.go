package selection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/milp"
)

// ValidateConfig checks a SelectionConfig, reporting every problem at once.
func ValidateConfig(c config.SelectionConfig) error {
	var errs []string

	if math.IsNaN(c.FixedCost) || math.IsInf(c.FixedCost, 0) {
		errs = append(errs, fmt.Sprintf("fixed_cost must be finite, got %v", c.FixedCost))
	}
	if c.MinSelected < 0 {
		errs = append(errs, fmt.Sprintf("min_selected must be >= 0, got %d", c.MinSelected))
	}
	if c.MinExclusionDistanceKM < 0 || math.IsNaN(c.MinExclusionDistanceKM) || math.IsInf(c.MinExclusionDistanceKM, 0) {
		errs = append(errs, fmt.Sprintf("min_exclusion_distance_km must be a finite value >= 0, got %v", c.MinExclusionDistanceKM))
	}
	if c.SolverTimeoutSecs < 0 {
		errs = append(errs, fmt.Sprintf("solver_timeout_secs must be >= 0, got %d", c.SolverTimeoutSecs))
	}
	if c.MaxNodes < 0 {
		errs = append(errs, fmt.Sprintf("max_nodes must be >= 0, got %d", c.MaxNodes))
	}

	if len(errs) > 0 {
		return eris.Errorf("selection: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FromConfig returns a Solver with the configured timeout and node limit.
func FromConfig(c config.SelectionConfig) *Solver {
	opts := []Option{
		WithEngine(milp.NewBranchAndBound(milp.Options{MaxNodes: c.MaxNodes})),
	}
	if c.SolverTimeoutSecs > 0 {
		opts = append(opts, WithTimeout(time.Duration(c.SolverTimeoutSecs)*time.Second))
	}
	return NewSolver(opts...)
}
