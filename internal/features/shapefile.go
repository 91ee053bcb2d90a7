package features

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
)

// shapefileTags are the DBF columns read as tags. Geofabrik exports use
// "fclass" for the amenity or shop value.
var shapefileTags = []string{"amenity", "shop", "building", "fclass", "name"}

// ShapefileSource reads an ESRI shapefile with amenity, shop and building
// attribute columns.
type ShapefileSource struct {
	Path string
}

// Load implements Source.
func (s *ShapefileSource) Load(ctx context.Context, region string) (*model.FeatureSet, error) {
	feats, err := ParseShapefile(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	return Build(region, feats)
}

// ParseShapefile reads every record of a shapefile. Lines and polygons are
// reduced to their planar centroid.
func ParseShapefile(ctx context.Context, path string) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var (
		out     []Feature
		skipped int
	)
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, shape := reader.Shape()
		g := toOrb(shape)
		if g == nil {
			skipped++
			continue
		}
		pt, ok := centroid(g)
		if !ok {
			skipped++
			continue
		}

		tags := make(map[string]string, len(shapefileTags))
		for _, key := range shapefileTags {
			if v := attr(key); v != "" {
				tags[key] = v
			}
		}
		if fc := tags["fclass"]; fc != "" {
			if _, ok := tags["amenity"]; !ok {
				tags["amenity"] = fc
			}
		}

		id := attr("osm_id")
		if id == "" {
			id = attr("id")
		}
		if id == "" {
			id = "shp-" + strconv.Itoa(row)
		}

		out = append(out, Feature{
			ID:    id,
			Name:  tags["name"],
			Point: geo.Point{Lat: pt.Lat(), Lon: pt.Lon()},
			Tags:  tags,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "features: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("features: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

// toOrb converts a go-shp shape to an orb geometry, nil when unsupported.
func toOrb(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(s.Points))
		for i, p := range s.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp
	case *shp.PolyLine:
		var mls orb.MultiLineString
		for _, part := range parts(s.Parts, s.Points) {
			mls = append(mls, orb.LineString(part))
		}
		if len(mls) == 0 {
			return nil
		}
		return mls
	case *shp.Polygon:
		// Outer rings are clockwise, holes counter-clockwise.
		var mp orb.MultiPolygon
		for _, part := range parts(s.Parts, s.Points) {
			ring := orb.Ring(part)
			if ring.Orientation() == orb.CCW && len(mp) > 0 {
				mp[len(mp)-1] = append(mp[len(mp)-1], ring)
				continue
			}
			mp = append(mp, orb.Polygon{ring})
		}
		switch len(mp) {
		case 0:
			return nil
		case 1:
			return mp[0]
		}
		return mp
	}
	return nil
}

// parts splits a flat point list at the part offsets.
func parts(offsets []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(offsets))
	for i, start := range offsets {
		end := int32(len(points))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}
