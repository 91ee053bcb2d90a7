// Package proximity answers "how many points lie within r km of p" queries
// with exact great-circle semantics.
package proximity

import (
	"math"
	"slices"

	"github.com/sells-group/siting-cli/internal/geo"
)

// CountWithin returns how many points lie within radiusKM of target,
// boundary inclusive. Empty or nil input yields 0.
func CountWithin(target geo.Point, points []geo.Point, radiusKM float64) int {
	if !validRadius(radiusKM) {
		return 0
	}
	n := 0
	for _, p := range points {
		if geo.DistanceKM(target, p) <= radiusKM {
			n++
		}
	}
	return n
}

// AnyWithin reports whether at least one point lies within radiusKM of
// target. It stops at the first match.
func AnyWithin(target geo.Point, points []geo.Point, radiusKM float64) bool {
	if !validRadius(radiusKM) {
		return false
	}
	return slices.ContainsFunc(points, func(p geo.Point) bool {
		return geo.DistanceKM(target, p) <= radiusKM
	})
}

func validRadius(r float64) bool {
	return r >= 0 && !math.IsNaN(r)
}
