package features

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/geo"
)

func TestBuild(t *testing.T) {
	feats := []Feature{
		{ID: "n1", Name: "PTT", Point: geo.Point{Lat: 13.70, Lon: 100.50}, Tags: map[string]string{"amenity": "fuel"}},
		{ID: "n2", Point: geo.Point{Lat: 13.71, Lon: 100.51}, Tags: map[string]string{"amenity": "restaurant"}},
		{ID: "n3", Point: geo.Point{Lat: 13.72, Lon: 100.52}, Tags: map[string]string{"amenity": "charging_station"}},
		{ID: "w4", Name: "Central", Point: geo.Point{Lat: 13.73, Lon: 100.53}, Tags: map[string]string{"shop": "mall"}},
		{ID: "w5", Point: geo.Point{Lat: 13.74, Lon: 100.54}, Tags: map[string]string{"building": "apartments"}},
		{ID: "n6", Point: geo.Point{Lat: 13.75, Lon: 100.55}, Tags: map[string]string{"amenity": "parking"}},
		{ID: "n7", Point: geo.Point{Lat: 13.76, Lon: 100.56}, Tags: map[string]string{"amenity": "bench"}},
	}

	fs, err := Build("bangkok", feats)
	require.NoError(t, err)

	assert.Equal(t, "bangkok", fs.Region)
	assert.Len(t, fs.Reference[geo.CategoryFuel], 1)
	assert.Len(t, fs.Reference[geo.CategoryFood], 1)
	assert.Len(t, fs.Reference[geo.CategoryRetail], 1)
	assert.Len(t, fs.Reference[geo.CategoryResidential], 1)
	assert.Len(t, fs.Existing, 1)

	require.Len(t, fs.Candidates, 3)
	assert.Equal(t, "n1", fs.Candidates[0].ID)
	assert.Equal(t, "fuel", fs.Candidates[0].Kind)
	assert.Equal(t, "PTT", fs.Candidates[0].Name)
	assert.Equal(t, "w4", fs.Candidates[1].ID)
	assert.Equal(t, "mall", fs.Candidates[1].Kind)
	assert.Equal(t, "n6", fs.Candidates[2].ID)
	assert.Equal(t, "parking", fs.Candidates[2].Kind)
}

func TestBuild_Empty(t *testing.T) {
	fs, err := Build("nowhere", nil)
	require.NoError(t, err)
	assert.Empty(t, fs.Candidates)
	assert.Empty(t, fs.Existing)
	for _, c := range geo.AllCategories {
		assert.NotNil(t, fs.Reference[c], "category %s", c)
	}
}

func TestBuild_GeneratesMissingIDs(t *testing.T) {
	fs, err := Build("r", []Feature{
		{Point: geo.Point{Lat: 1, Lon: 1}, Tags: map[string]string{"amenity": "parking"}},
		{Point: geo.Point{Lat: 2, Lon: 2}, Tags: map[string]string{"amenity": "parking"}},
	})
	require.NoError(t, err)
	require.Len(t, fs.Candidates, 2)
	assert.Equal(t, "feature-0", fs.Candidates[0].ID)
	assert.Equal(t, "feature-1", fs.Candidates[1].ID)
}

func TestBuild_DuplicateCandidateID(t *testing.T) {
	_, err := Build("r", []Feature{
		{ID: "a", Point: geo.Point{Lat: 1, Lon: 1}, Tags: map[string]string{"amenity": "fuel"}},
		{ID: "a", Point: geo.Point{Lat: 2, Lon: 2}, Tags: map[string]string{"amenity": "parking"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate candidate id")
}

func TestBuild_InvalidCoordinate(t *testing.T) {
	_, err := Build("r", []Feature{
		{ID: "bad", Point: geo.Point{Lat: 91, Lon: 0}, Tags: map[string]string{"amenity": "fuel"}},
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, geo.ErrInvalidCoordinate), "got %v", err)
}

func TestNew(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tests := []struct {
		name    string
		cfg     config.FeaturesConfig
		pool    bool
		want    any
		wantErr bool
	}{
		{"geojson", config.FeaturesConfig{Source: "geojson", Path: "x.geojson"}, false, &GeoJSONSource{}, false},
		{"default is geojson", config.FeaturesConfig{Path: "x.geojson"}, false, &GeoJSONSource{}, false},
		{"geojson without path", config.FeaturesConfig{Source: "geojson"}, false, nil, true},
		{"shapefile", config.FeaturesConfig{Source: "shapefile", Path: "x.shp"}, false, &ShapefileSource{}, false},
		{"shapefile without path", config.FeaturesConfig{Source: "shapefile"}, false, nil, true},
		{"postgres", config.FeaturesConfig{Source: "postgres"}, true, &PostgresSource{}, false},
		{"postgres without pool", config.FeaturesConfig{Source: "postgres"}, false, nil, true},
		{"unknown", config.FeaturesConfig{Source: "overpass"}, false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var src Source
			var err error
			if tt.pool {
				src, err = New(tt.cfg, mock)
			} else {
				src, err = New(tt.cfg, nil)
			}
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}
