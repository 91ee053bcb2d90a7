// Package exclusion derives which candidates sit too close to an existing
// facility to be built.
package exclusion

import (
	"context"
	"math"
	"runtime"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
	"github.com/sells-group/siting-cli/internal/proximity"
)

const chunk = 256

// Set holds excluded candidate IDs.
type Set map[string]struct{}

// Has reports whether id is excluded.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the excluded IDs sorted.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Build returns the IDs of candidates with at least one existing facility
// within minDistanceKM, boundary inclusive. A candidate at the same location
// as a facility is excluded for any minDistanceKM >= 0. Candidates are not
// modified.
func Build(ctx context.Context, candidates []model.Candidate, existing []geo.Point, minDistanceKM float64) (Set, error) {
	if minDistanceKM < 0 || math.IsNaN(minDistanceKM) {
		return nil, eris.Errorf("exclusion: min distance must be >= 0, got %v", minDistanceKM)
	}

	excluded := make([]bool, len(candidates))
	if len(existing) > 0 && len(candidates) > 0 {
		ix := proximity.NewIndex(existing, minDistanceKM)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for lo := 0; lo < len(candidates); lo += chunk {
			hi := min(lo+chunk, len(candidates))
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				for i := lo; i < hi; i++ {
					excluded[i] = ix.AnyWithin(candidates[i].Point, minDistanceKM)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "exclusion: build")
		}
	}

	set := make(Set)
	for i, ex := range excluded {
		if ex {
			set[candidates[i].ID] = struct{}{}
		}
	}

	zap.L().Info("exclusions built",
		zap.String("component", "exclusion"),
		zap.Int("candidates", len(candidates)),
		zap.Int("existing", len(existing)),
		zap.Int("excluded", len(set)),
		zap.Float64("min_distance_km", minDistanceKM),
	)
	return set, nil
}
