package db

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/siting-cli/internal/geo"
)

// SRID is the spatial reference of every stored geometry (WGS84).
const SRID = 4326

// EncodePoint returns p as little-endian EWKB with SRID 4326, the binary
// form PostGIS accepts for geometry columns in COPY and parameters.
func EncodePoint(p geo.Point) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "db: encode point")
	}
	return data, nil
}

// DecodePoint parses an EWKB point.
func DecodePoint(data []byte) (geo.Point, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return geo.Point{}, eris.Wrap(err, "db: decode geometry")
	}
	pt, ok := g.(*geom.Point)
	if !ok || pt.Empty() {
		return geo.Point{}, eris.Errorf("db: expected point geometry, got %T", g)
	}
	return geo.NewPoint(pt.Y(), pt.X())
}
