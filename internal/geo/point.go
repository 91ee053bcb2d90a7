// Package geo provides coordinates, great-circle distance, and the point
// categories used to score candidate sites.
package geo

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// the WGS84 range or is not a finite number.
var ErrInvalidCoordinate = eris.New("geo: invalid coordinate")

// Point is a WGS84 coordinate in degrees. Construct it with NewPoint when the
// values come from outside the process.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// NewPoint validates and returns a Point. Out-of-range values are rejected,
// never clamped.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate reports whether p is a usable WGS84 coordinate.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude %v out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude %v out of range [-180, 180]", p.Lon)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}
