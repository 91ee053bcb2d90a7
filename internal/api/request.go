package api

import (
	"math"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/covariate"
	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
)

// PointRequest is a WGS84 coordinate.
type PointRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// CandidateRequest is an inline candidate. Population, when present, is
// used as its covariate.
type CandidateRequest struct {
	ID         string   `json:"id" validate:"required"`
	Lat        float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lon        float64  `json:"lon" validate:"gte=-180,lte=180"`
	Kind       string   `json:"kind,omitempty"`
	Name       string   `json:"name,omitempty"`
	Population *float64 `json:"population,omitempty"`
}

// OptimizeRequest runs the pipeline. Without inline candidates the region
// is loaded from the server's feature source.
type OptimizeRequest struct {
	Region     string                    `json:"region" validate:"required"`
	Reference  map[string][]PointRequest `json:"reference,omitempty" validate:"dive,keys,oneof=amenity-food amenity-fuel retail residential,endkeys,dive"`
	Existing   []PointRequest            `json:"existing,omitempty" validate:"dive"`
	Candidates []CandidateRequest        `json:"candidates,omitempty" validate:"unique=ID,dive"`

	FixedCost              *float64 `json:"fixed_cost,omitempty"`
	MinSelected            *int     `json:"min_selected,omitempty" validate:"omitempty,gte=0"`
	MinExclusionDistanceKM *float64 `json:"min_exclusion_distance_km,omitempty" validate:"omitempty,gte=0"`
	SortByBenefit          bool     `json:"sort_by_benefit,omitempty"`
}

// inline reports whether the request carries its own features.
func (r *OptimizeRequest) inline() bool {
	return len(r.Candidates) > 0 || len(r.Existing) > 0 || len(r.Reference) > 0
}

// featureSet converts the inline features.
func (r *OptimizeRequest) featureSet() *model.FeatureSet {
	fs := &model.FeatureSet{
		Region:     r.Region,
		Reference:  model.NewReferencePointSet(),
		Existing:   make([]geo.Point, 0, len(r.Existing)),
		Candidates: make([]model.Candidate, 0, len(r.Candidates)),
	}
	for name, pts := range r.Reference {
		cat := geo.Category(name)
		for _, p := range pts {
			fs.Reference[cat] = append(fs.Reference[cat], geo.Point{Lat: p.Lat, Lon: p.Lon})
		}
	}
	for _, p := range r.Existing {
		fs.Existing = append(fs.Existing, geo.Point{Lat: p.Lat, Lon: p.Lon})
	}
	for _, c := range r.Candidates {
		fs.Candidates = append(fs.Candidates, model.Candidate{
			ID:    c.ID,
			Point: geo.Point{Lat: c.Lat, Lon: c.Lon},
			Kind:  c.Kind,
			Name:  c.Name,
		})
	}
	return fs
}

// covariates returns a Static source when any candidate carries a
// population value. Candidates without one sample as NaN.
func (r *OptimizeRequest) covariates() (covariate.Static, bool) {
	var found bool
	vals := make(covariate.Static, len(r.Candidates))
	for i, c := range r.Candidates {
		if c.Population == nil {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = *c.Population
		found = true
	}
	return vals, found
}

// selection applies the request overrides to base.
func (r *OptimizeRequest) selection(base config.SelectionConfig) config.SelectionConfig {
	if r.FixedCost != nil {
		base.FixedCost = *r.FixedCost
	}
	if r.MinSelected != nil {
		base.MinSelected = *r.MinSelected
	}
	if r.MinExclusionDistanceKM != nil {
		base.MinExclusionDistanceKM = *r.MinExclusionDistanceKM
	}
	return base
}
