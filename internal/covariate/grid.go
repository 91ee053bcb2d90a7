package covariate

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/geo"
)

const (
	// maxGridCells bounds ncols*nrows. A global 30 arc-second raster is
	// about 933M cells.
	maxGridCells   = 1 << 30
	initialGridCap = 1 << 16
)

// Grid is a raster in ESRI ASCII grid format, sampled by nearest cell.
// Row 0 is the northern edge.
type Grid struct {
	NCols    int
	NRows    int
	XLL      float64 // west edge of the raster
	YLL      float64 // south edge of the raster
	CellSize float64
	NoData   float64
	Values   []float64
}

// LoadGrid reads an ESRI ASCII grid file. noData applies when the file has
// no NODATA_value header.
func LoadGrid(path string, noData float64) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "covariate: open grid %s", path)
	}
	defer f.Close() //nolint:errcheck

	g, err := ParseGrid(f, noData)
	if err != nil {
		return nil, eris.Wrapf(err, "covariate: parse grid %s", path)
	}
	return g, nil
}

// ParseGrid parses an ESRI ASCII grid.
func ParseGrid(r io.Reader, noData float64) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	g := &Grid{NoData: noData}
	var (
		center     bool
		haveX      bool
		haveY      bool
		pending    string
		hasPending bool
	)

	// Header keys come in key/value pairs until the first numeric token.
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending, hasPending = key, true
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("covariate: header %s has no value", key)
		}
		val := sc.Text()
		var err error
		switch key {
		case "ncols":
			g.NCols, err = strconv.Atoi(val)
		case "nrows":
			g.NRows, err = strconv.Atoi(val)
		case "xllcorner", "xllcenter":
			g.XLL, err = strconv.ParseFloat(val, 64)
			center = center || key == "xllcenter"
			haveX = true
		case "yllcorner", "yllcenter":
			g.YLL, err = strconv.ParseFloat(val, 64)
			center = center || key == "yllcenter"
			haveY = true
		case "cellsize":
			g.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			g.NoData, err = strconv.ParseFloat(val, 64)
		default:
			return nil, eris.Errorf("covariate: unknown header %q", key)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "covariate: header %s", key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "covariate: read grid")
	}

	if g.NCols <= 0 || g.NRows <= 0 {
		return nil, eris.Errorf("covariate: invalid grid size %dx%d", g.NCols, g.NRows)
	}
	if !(g.CellSize > 0) || !haveX || !haveY {
		return nil, eris.New("covariate: grid header needs cellsize and lower-left corner")
	}
	if center {
		g.XLL -= g.CellSize / 2
		g.YLL -= g.CellSize / 2
	}

	if g.NCols > maxGridCells/g.NRows {
		return nil, eris.Errorf("covariate: grid size %dx%d exceeds %d cells", g.NCols, g.NRows, maxGridCells)
	}
	n := g.NCols * g.NRows
	// Grow with the data actually read, not the header's claim.
	g.Values = make([]float64, 0, min(n, initialGridCap))
	if hasPending {
		v, _ := strconv.ParseFloat(pending, 64)
		g.Values = append(g.Values, v)
	}
	for len(g.Values) < n && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "covariate: cell %d", len(g.Values))
		}
		g.Values = append(g.Values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "covariate: read grid")
	}
	if len(g.Values) != n {
		return nil, eris.Errorf("covariate: grid has %d cells, want %d", len(g.Values), n)
	}
	return g, nil
}

// At returns the value of the cell containing p, or NaN when p is outside
// the raster or the cell holds no data.
func (g *Grid) At(p geo.Point) float64 {
	col := int(math.Floor((p.Lon - g.XLL) / g.CellSize))
	rowFromSouth := int(math.Floor((p.Lat - g.YLL) / g.CellSize))
	if col < 0 || col >= g.NCols || rowFromSouth < 0 || rowFromSouth >= g.NRows {
		return math.NaN()
	}
	v := g.Values[(g.NRows-1-rowFromSouth)*g.NCols+col]
	if v == g.NoData || math.IsNaN(v) {
		return math.NaN()
	}
	return v
}

// SampleAt implements Source.
func (g *Grid) SampleAt(ctx context.Context, points []geo.Point) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = g.At(p)
	}
	return out, nil
}
