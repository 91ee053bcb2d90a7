package covariate

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/geo"
)

// 3x2 grid over lon [100, 103), lat [13, 15), 1 degree cells.
const testGrid = `ncols 3
nrows 2
xllcorner 100
yllcorner 13
cellsize 1
NODATA_value -9999
10 20 30
40 -9999 60
`

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid(strings.NewReader(testGrid), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, g.NCols)
	assert.Equal(t, 2, g.NRows)
	assert.Equal(t, -9999.0, g.NoData)
	assert.Len(t, g.Values, 6)
}

func TestGrid_At(t *testing.T) {
	g, err := ParseGrid(strings.NewReader(testGrid), 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		p    geo.Point
		want float64
	}{
		{"north west", geo.Point{Lat: 14.5, Lon: 100.5}, 10},
		{"north east", geo.Point{Lat: 14.5, Lon: 102.5}, 30},
		{"south west", geo.Point{Lat: 13.5, Lon: 100.5}, 40},
		{"south east", geo.Point{Lat: 13.5, Lon: 102.5}, 60},
		{"lower-left corner belongs to first cell", geo.Point{Lat: 13, Lon: 100}, 40},
		{"nodata", geo.Point{Lat: 13.5, Lon: 101.5}, math.NaN()},
		{"west of raster", geo.Point{Lat: 14, Lon: 99.9}, math.NaN()},
		{"north of raster", geo.Point{Lat: 15, Lon: 101}, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.At(tt.p)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGrid_CenterHeader(t *testing.T) {
	src := "ncols 1\nnrows 1\nxllcenter 100.5\nyllcenter 13.5\ncellsize 1\n7\n"
	g, err := ParseGrid(strings.NewReader(src), -1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, g.XLL, 1e-12)
	assert.InDelta(t, 13.0, g.YLL, 1e-12)
	assert.Equal(t, -1.0, g.NoData)
	assert.Equal(t, 7.0, g.At(geo.Point{Lat: 13.2, Lon: 100.9}))
}

func TestParseGrid_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"short data", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"},
		{"unknown header", "ncols 1\nnrows 1\nbogus 1\n"},
		{"zero size", "ncols 0\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n"},
		{"missing cellsize", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\n5\n"},
		{"bad cell", "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 x\n"},
		{"empty", ""},
		{"oversized header", "ncols 1000000000\nnrows 1000000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"header larger than data", "ncols 1000000000\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrid(strings.NewReader(tt.src), 0)
			assert.Error(t, err)
		})
	}
}

func TestLoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pop.asc")
	require.NoError(t, os.WriteFile(path, []byte(testGrid), 0o644))

	g, err := LoadGrid(path, 0)
	require.NoError(t, err)

	vals, err := g.SampleAt(context.Background(), []geo.Point{
		{Lat: 14.5, Lon: 101.5},
		{Lat: 0, Lon: 0},
	})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, 20.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]))
}

func TestLoadGrid_Missing(t *testing.T) {
	_, err := LoadGrid(filepath.Join(t.TempDir(), "nope.asc"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open grid")
}

func TestGrid_SampleAtCancelled(t *testing.T) {
	g, err := ParseGrid(strings.NewReader(testGrid), 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.SampleAt(ctx, []geo.Point{{Lat: 14, Lon: 101}})
	assert.ErrorIs(t, err, context.Canceled)
}
