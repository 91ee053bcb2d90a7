package model

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/geo"
)

// ReferencePointSet maps each category to the points scored against.
// Categories without points hold an empty slice.
type ReferencePointSet map[geo.Category][]geo.Point

// NewReferencePointSet returns a set with an empty slice for every category.
func NewReferencePointSet() ReferencePointSet {
	rs := make(ReferencePointSet, len(geo.AllCategories))
	for _, c := range geo.AllCategories {
		rs[c] = []geo.Point{}
	}
	return rs
}

// Counts returns the number of points per category.
func (rs ReferencePointSet) Counts() map[geo.Category]int {
	out := make(map[geo.Category]int, len(rs))
	for _, c := range geo.AllCategories {
		out[c] = len(rs[c])
	}
	return out
}

// FeatureSet is everything a siting run needs from the feature source.
type FeatureSet struct {
	Region     string            `json:"region"`
	Reference  ReferencePointSet `json:"reference"`
	Existing   []geo.Point       `json:"existing"`
	Candidates []Candidate       `json:"candidates"`
}

// Validate checks coordinates and candidate ID uniqueness.
func (fs *FeatureSet) Validate() error {
	for _, c := range geo.AllCategories {
		for i, p := range fs.Reference[c] {
			if err := p.Validate(); err != nil {
				return eris.Wrapf(err, "model: reference %s[%d]", c, i)
			}
		}
	}
	for i, p := range fs.Existing {
		if err := p.Validate(); err != nil {
			return eris.Wrapf(err, "model: existing facility %d", i)
		}
	}
	seen := make(map[string]struct{}, len(fs.Candidates))
	for i, c := range fs.Candidates {
		if c.ID == "" {
			return eris.Errorf("model: candidate %d has empty id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return eris.Errorf("model: duplicate candidate id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		if err := c.Point.Validate(); err != nil {
			return eris.Wrapf(err, "model: candidate %q", c.ID)
		}
	}
	return nil
}
