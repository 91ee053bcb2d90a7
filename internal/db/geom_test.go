package db

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/siting-cli/internal/geo"
)

func TestEncodeDecodePoint(t *testing.T) {
	in := geo.Point{Lat: 13.7563, Lon: 100.5018}
	b, err := EncodePoint(in)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, SRID, g.SRID())

	out, err := DecodePoint(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodePoint_Errors(t *testing.T) {
	_, err := DecodePoint([]byte{0x01})
	require.Error(t, err)

	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}).SetSRID(SRID)
	b, err := ewkb.Marshal(line, ewkb.NDR)
	require.NoError(t, err)
	_, err = DecodePoint(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected point geometry")

	bad := geom.NewPointFlat(geom.XY, []float64{0, 95}).SetSRID(SRID)
	b, err = ewkb.Marshal(bad, ewkb.NDR)
	require.NoError(t, err)
	_, err = DecodePoint(b)
	assert.True(t, eris.Is(err, geo.ErrInvalidCoordinate))
}
