// Package result joins a solver assignment back onto candidate records.
package result

import (
	"cmp"
	"slices"

	"github.com/sells-group/siting-cli/internal/model"
)

type options struct {
	sortByBenefit bool
}

// Option configures Assemble.
type Option func(*options)

// SortByBenefit orders the output by descending benefit score. Equal scores
// keep input order.
func SortByBenefit() Option {
	return func(o *options) { o.sortByBenefit = true }
}

// Assemble returns a SelectedSite for every candidate whose ID maps to true,
// in candidate order unless SortByBenefit is given. IDs missing from the
// assignment are not selected.
func Assemble(candidates []model.Candidate, assignment map[string]bool, opts ...Option) []model.SelectedSite {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	sites := make([]model.SelectedSite, 0, len(candidates))
	for _, c := range candidates {
		if !assignment[c.ID] {
			continue
		}
		sites = append(sites, model.SelectedSite{
			ID:                  c.ID,
			Point:               c.Point,
			BenefitScore:        c.BenefitScore,
			NeighbourScore:      c.NeighbourScore,
			PopulationCovariate: c.PopulationCovariate,
		})
	}

	if o.sortByBenefit {
		slices.SortStableFunc(sites, func(a, b model.SelectedSite) int {
			return cmp.Compare(b.BenefitScore, a.BenefitScore)
		})
	}
	return sites
}

// Tag returns a copy of candidates with Selected set from assignment. The
// input slice is not modified.
func Tag(candidates []model.Candidate, assignment map[string]bool) []model.Candidate {
	out := slices.Clone(candidates)
	for i := range out {
		out[i].Selected = assignment[out[i].ID]
	}
	return out
}
