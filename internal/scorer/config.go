// Package scorer computes candidate desirability: weighted neighbour counts
// per category, fused with a population covariate into a benefit score.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/geo"
)

// DefaultScorerConfig returns a config.ScoringConfig with the standard
// weights, a 0.5 km radius and fusion coefficients 0.5 and 10.
func DefaultScorerConfig() config.ScoringConfig {
	weights := make(map[string]float64, len(geo.AllCategories))
	for c, w := range geo.DefaultWeights() {
		weights[string(c)] = w
	}
	return config.ScoringConfig{
		RadiusKM:         0.5,
		CategoryWeights:  weights,
		PopulationWeight: 0.5,
		NeighbourWeight:  10,
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	if c.RadiusKM < 0 || !finite(c.RadiusKM) {
		errs = append(errs, fmt.Sprintf("radius_km must be a finite value >= 0, got %v", c.RadiusKM))
	}

	for name, w := range c.CategoryWeights {
		if _, err := geo.ParseCategory(name); err != nil {
			errs = append(errs, fmt.Sprintf("category_weights: unknown category %q", name))
			continue
		}
		if w < 0 || !finite(w) {
			errs = append(errs, fmt.Sprintf("category_weights.%s must be a finite value >= 0", name))
		}
	}

	if !finite(c.PopulationWeight) {
		errs = append(errs, "population_weight must be finite")
	}
	if !finite(c.NeighbourWeight) {
		errs = append(errs, "neighbour_weight must be finite")
	}
	if c.Workers < 0 {
		errs = append(errs, "workers must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// categoryWeights resolves the configured weights. Categories missing from
// the map get weight 0 and are skipped during scoring.
func categoryWeights(c config.ScoringConfig) map[geo.Category]float64 {
	out := make(map[geo.Category]float64, len(geo.AllCategories))
	for name, w := range c.CategoryWeights {
		cat, err := geo.ParseCategory(name)
		if err != nil {
			continue
		}
		out[cat] = w
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
