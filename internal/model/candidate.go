// Package model defines the data shared by the siting pipeline stages.
package model

import (
	"github.com/sells-group/siting-cli/internal/geo"
)

// Candidate is a location eligible for a new charging station.
//
// Loaders set ID, Point, Kind and Name. The scorer fills NeighbourScore,
// PopulationCovariate and BenefitScore. BenefitScore must not change once the
// selection problem has been built. Selected is set only on tagged copies
// returned by result.Tag.
type Candidate struct {
	ID                  string    `json:"id" yaml:"id"`
	Point               geo.Point `json:"point" yaml:"point"`
	Kind                string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Name                string    `json:"name,omitempty" yaml:"name,omitempty"`
	NeighbourScore      float64   `json:"neighbour_score" yaml:"neighbour_score"`
	PopulationCovariate float64   `json:"population_covariate" yaml:"population_covariate"`
	BenefitScore        float64   `json:"benefit_score" yaml:"benefit_score"`
	Selected            bool      `json:"selected" yaml:"selected"`
}

// Points returns the coordinates of the candidates in order.
func Points(candidates []Candidate) []geo.Point {
	out := make([]geo.Point, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Point
	}
	return out
}

// SelectedSite is the output record for a candidate chosen by the solver.
type SelectedSite struct {
	ID                  string    `json:"id" yaml:"id"`
	Point               geo.Point `json:"point" yaml:"point"`
	BenefitScore        float64   `json:"benefit_score" yaml:"benefit_score"`
	NeighbourScore      float64   `json:"neighbour_score" yaml:"neighbour_score"`
	PopulationCovariate float64   `json:"population_covariate" yaml:"population_covariate"`
}
