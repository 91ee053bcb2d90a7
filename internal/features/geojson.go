package features

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
)

// GeoJSONSource reads a FeatureCollection exported from OpenStreetMap.
// The region argument of Load only labels the result.
type GeoJSONSource struct {
	Path string
}

// Load implements Source.
func (s *GeoJSONSource) Load(ctx context.Context, region string) (*model.FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: read %s", s.Path)
	}
	feats, err := ParseGeoJSON(data)
	if err != nil {
		return nil, err
	}
	return Build(region, feats)
}

// ParseGeoJSON decodes a FeatureCollection. Non-point geometries are
// reduced to their planar centroid; features without geometry are skipped.
// String properties become tags.
func ParseGeoJSON(data []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "features: decode geojson")
	}

	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		pt, ok := centroid(f.Geometry)
		if !ok {
			continue
		}

		tags := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			if s, ok := v.(string); ok {
				tags[k] = s
			}
		}
		out = append(out, Feature{
			ID:    featureID(f),
			Name:  tags["name"],
			Point: geo.Point{Lat: pt.Lat(), Lon: pt.Lon()},
			Tags:  tags,
		})
	}
	return out, nil
}

// centroid returns a representative point, false for empty geometries.
func centroid(g orb.Geometry) (orb.Point, bool) {
	if p, ok := g.(orb.Point); ok {
		return p, true
	}
	if empty(g) {
		return orb.Point{}, false
	}
	c, _ := planar.CentroidArea(g)
	return c, true
}

func empty(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	case orb.Collection:
		return len(g) == 0
	}
	return false
}

// featureID prefers the feature id, then the "@id" or "osm_id" property.
func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%.0f", id)
	case nil:
	default:
		return fmt.Sprint(id)
	}
	for _, key := range []string{"@id", "osm_id", "id"} {
		switch v := f.Properties[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
