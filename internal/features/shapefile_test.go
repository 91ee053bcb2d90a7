package features

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/geo"
)

func writePointShapefile(t *testing.T, rows [][4]string, points []shp.Point) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pois.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("OSM_ID", 16),
		shp.StringField("NAME", 32),
		shp.StringField("AMENITY", 32),
		shp.StringField("SHOP", 32),
	}))
	for i, p := range points {
		n := int(w.Write(&p))
		for j, v := range rows[i] {
			if v == "" {
				continue
			}
			require.NoError(t, w.WriteAttribute(n, j, v))
		}
	}
	w.Close()

	// The writer names the attribute table "<base>dbf"; readers expect "<base>.dbf".
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

func TestParseShapefile_Points(t *testing.T) {
	path := writePointShapefile(t,
		[][4]string{
			{"101", "PTT", "fuel", ""},
			{"102", "", "", "mall"},
			{"", "", "charging_station", ""},
		},
		[]shp.Point{{X: 100.5, Y: 13.7}, {X: 100.6, Y: 13.8}, {X: 100.7, Y: 13.9}},
	)

	feats, err := ParseShapefile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, feats, 3)

	assert.Equal(t, "101", feats[0].ID)
	assert.Equal(t, "PTT", feats[0].Name)
	assert.Equal(t, "fuel", feats[0].Tags["amenity"])
	assert.Equal(t, geo.Point{Lat: 13.7, Lon: 100.5}, feats[0].Point)
	assert.Equal(t, "mall", feats[1].Tags["shop"])
	assert.Equal(t, "shp-2", feats[2].ID)
}

func TestShapefileSource_Load(t *testing.T) {
	path := writePointShapefile(t,
		[][4]string{{"1", "", "fuel", ""}, {"2", "", "charging_station", ""}},
		[]shp.Point{{X: 100.5, Y: 13.7}, {X: 100.5, Y: 13.701}},
	)

	fs, err := (&ShapefileSource{Path: path}).Load(context.Background(), "bangkok")
	require.NoError(t, err)
	assert.Len(t, fs.Candidates, 1)
	assert.Len(t, fs.Existing, 1)
	assert.Len(t, fs.Reference[geo.CategoryFuel], 1)
}

func TestParseShapefile_ReadsAttributes(t *testing.T) {
	path := writePointShapefile(t,
		[][4]string{{"7", "Central", "", "mall"}},
		[]shp.Point{{X: 100.54, Y: 13.74}},
	)

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck
	assert.Len(t, r.Fields(), 4)

	feats, err := ParseShapefile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.Equal(t, "7", feats[0].ID)
	assert.Equal(t, "Central", feats[0].Name)
	assert.Equal(t, map[string]string{"shop": "mall", "name": "Central"}, feats[0].Tags)
}

func TestParseShapefile_Missing(t *testing.T) {
	_, err := ParseShapefile(context.Background(), filepath.Join(t.TempDir(), "none.shp"))
	assert.Error(t, err)
}

func TestToOrb(t *testing.T) {
	square := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 0}}

	t.Run("point", func(t *testing.T) {
		assert.Equal(t, orb.Point{1, 2}, toOrb(&shp.Point{X: 1, Y: 2}))
	})
	t.Run("polygon", func(t *testing.T) {
		g := toOrb(&shp.Polygon{NumParts: 1, Parts: []int32{0}, Points: square})
		poly, ok := g.(orb.Polygon)
		require.True(t, ok, "got %T", g)
		c, ok := centroid(poly)
		require.True(t, ok)
		assert.InDelta(t, 1.0, c.X(), 1e-9)
		assert.InDelta(t, 1.0, c.Y(), 1e-9)
	})
	t.Run("two outer rings", func(t *testing.T) {
		pts := append([]shp.Point{}, square...)
		for _, p := range square {
			pts = append(pts, shp.Point{X: p.X + 10, Y: p.Y})
		}
		g := toOrb(&shp.Polygon{NumParts: 2, Parts: []int32{0, 5}, Points: pts})
		mp, ok := g.(orb.MultiPolygon)
		require.True(t, ok, "got %T", g)
		assert.Len(t, mp, 2)
	})
	t.Run("polyline", func(t *testing.T) {
		g := toOrb(&shp.PolyLine{NumParts: 1, Parts: []int32{0}, Points: []shp.Point{{X: 0, Y: 0}, {X: 4, Y: 0}}})
		c, ok := centroid(g)
		require.True(t, ok)
		assert.InDelta(t, 2.0, c.X(), 1e-9)
	})
	t.Run("empty polygon", func(t *testing.T) {
		assert.Nil(t, toOrb(&shp.Polygon{}))
	})
	t.Run("unsupported", func(t *testing.T) {
		assert.Nil(t, toOrb(&shp.Null{}))
		assert.Nil(t, toOrb(nil))
	})
}
