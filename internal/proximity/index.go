package proximity

import (
	"math"
	"slices"

	"github.com/sells-group/siting-cli/internal/geo"
)

const (
	// minCellDeg bounds the grid resolution (about 11 m).
	minCellDeg = 1e-4
	maxCellDeg = 90.0

	// boundSlack widens the search window so rounding in the bounding-box
	// math can never exclude a point the exact distance check would accept.
	boundSlack = 1e-9
)

type cell struct {
	row int32
	col int32
}

// Index is an equal-angle grid over a fixed set of points. Queries visit
// only the cells overlapping the bounding box of the search circle and then
// apply the exact haversine test, so results always match CountWithin and
// AnyWithin on the same points. The Index is read-only after construction
// and safe for concurrent use.
type Index struct {
	points  []geo.Point
	cellDeg float64
	cols    int64
	cells   map[cell][]int32
}

// NewIndex builds a grid index over points. cellKM should be close to the
// typical query radius; any value works, it only affects speed.
func NewIndex(points []geo.Point, cellKM float64) *Index {
	cellDeg := cellKM / geo.KMPerDegree
	if !(cellDeg >= minCellDeg) {
		cellDeg = minCellDeg
	}
	cellDeg = math.Min(cellDeg, maxCellDeg)

	// Snap the cell size so a whole number of columns spans 360 degrees and
	// longitude wrap-around maps exactly onto stored columns.
	cols := int64(math.Ceil(360 / cellDeg))
	cellDeg = 360 / float64(cols)

	ix := &Index{
		points:  slices.Clone(points),
		cellDeg: cellDeg,
		cols:    cols,
		cells:   make(map[cell][]int32),
	}
	for i, p := range ix.points {
		c := cell{row: ix.rowOf(p.Lat), col: ix.wrapCol(ix.unwrappedCol(p.Lon))}
		ix.cells[c] = append(ix.cells[c], int32(i))
	}
	return ix
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	return len(ix.points)
}

// CountWithin returns how many indexed points lie within radiusKM of target.
func (ix *Index) CountWithin(target geo.Point, radiusKM float64) int {
	return ix.scan(target, radiusKM, false)
}

// AnyWithin reports whether any indexed point lies within radiusKM of target.
func (ix *Index) AnyWithin(target geo.Point, radiusKM float64) bool {
	return ix.scan(target, radiusKM, true) > 0
}

func (ix *Index) scan(target geo.Point, radiusKM float64, firstOnly bool) int {
	if ix == nil || len(ix.points) == 0 || !validRadius(radiusKM) {
		return 0
	}

	delta := radiusKM / geo.EarthRadiusKM
	if delta >= math.Pi/2 {
		return ix.linear(target, radiusKM, firstOnly)
	}

	dLat := delta*180/math.Pi*(1+boundSlack) + boundSlack
	rowLo := ix.rowOf(target.Lat-dLat) - 1
	rowHi := ix.rowOf(target.Lat+dLat) + 1

	colLo, colHi := int64(0), ix.cols-1
	if math.Abs(target.Lat)+dLat < 90 {
		ratio := math.Sin(delta) / math.Cos(target.Lat*math.Pi/180)
		if ratio < 1 {
			dLon := math.Asin(ratio)*180/math.Pi*(1+boundSlack) + boundSlack
			lo := ix.unwrappedCol(target.Lon-dLon) - 1
			hi := ix.unwrappedCol(target.Lon+dLon) + 1
			if hi-lo+1 < ix.cols {
				colLo, colHi = lo, hi
			}
		}
	}

	visits := int64(rowHi-rowLo+1) * (colHi - colLo + 1)
	if visits > int64(len(ix.points)) {
		return ix.linear(target, radiusKM, firstOnly)
	}

	n := 0
	for r := rowLo; r <= rowHi; r++ {
		for c := colLo; c <= colHi; c++ {
			for _, i := range ix.cells[cell{row: r, col: ix.wrapCol(c)}] {
				if geo.DistanceKM(target, ix.points[i]) <= radiusKM {
					n++
					if firstOnly {
						return n
					}
				}
			}
		}
	}
	return n
}

func (ix *Index) linear(target geo.Point, radiusKM float64, firstOnly bool) int {
	if firstOnly {
		if AnyWithin(target, ix.points, radiusKM) {
			return 1
		}
		return 0
	}
	return CountWithin(target, ix.points, radiusKM)
}

func (ix *Index) rowOf(lat float64) int32 {
	return int32(math.Floor((lat + 90) / ix.cellDeg))
}

func (ix *Index) unwrappedCol(lon float64) int64 {
	return int64(math.Floor((lon + 180) / ix.cellDeg))
}

func (ix *Index) wrapCol(c int64) int32 {
	c %= ix.cols
	if c < 0 {
		c += ix.cols
	}
	return int32(c)
}
