// Package features loads tagged map features for a region and sorts them
// into reference points, existing charging stations and candidate sites.
package features

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/db"
	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
)

// Feature is one tagged map feature reduced to a representative point.
type Feature struct {
	ID    string
	Name  string
	Point geo.Point
	Tags  map[string]string
}

// Source loads the features of a region.
type Source interface {
	Load(ctx context.Context, region string) (*model.FeatureSet, error)
}

// New returns the Source selected by cfg.Source. pool is required only for
// the postgres source.
func New(cfg config.FeaturesConfig, pool db.Pool) (Source, error) {
	switch cfg.Source {
	case "", "geojson":
		if cfg.Path == "" {
			return nil, eris.New("features: geojson source needs a path")
		}
		return &GeoJSONSource{Path: cfg.Path}, nil
	case "shapefile":
		if cfg.Path == "" {
			return nil, eris.New("features: shapefile source needs a path")
		}
		return &ShapefileSource{Path: cfg.Path}, nil
	case "postgres":
		if pool == nil {
			return nil, eris.New("features: postgres source needs a database pool")
		}
		return NewPostgresSource(pool, cfg.Table), nil
	default:
		return nil, eris.Errorf("features: unknown source %q", cfg.Source)
	}
}

// Build classifies features into a FeatureSet. A feature can land in more
// than one group. Features without a recognised role are ignored.
func Build(region string, feats []Feature) (*model.FeatureSet, error) {
	fs := &model.FeatureSet{
		Region:    region,
		Reference: model.NewReferencePointSet(),
	}

	var ignored int
	for i, f := range feats {
		if err := f.Point.Validate(); err != nil {
			return nil, eris.Wrapf(err, "features: feature %d (%s)", i, f.ID)
		}

		roles := geo.Classify(f.Tags)
		if roles.Empty() {
			ignored++
			continue
		}
		for _, c := range roles.Categories {
			fs.Reference[c] = append(fs.Reference[c], f.Point)
		}
		if roles.Existing {
			fs.Existing = append(fs.Existing, f.Point)
		}
		if roles.Candidate {
			id := f.ID
			if id == "" {
				id = "feature-" + strconv.Itoa(i)
			}
			fs.Candidates = append(fs.Candidates, model.Candidate{
				ID:    id,
				Point: f.Point,
				Kind:  kind(f.Tags),
				Name:  f.Name,
			})
		}
	}

	if err := fs.Validate(); err != nil {
		return nil, eris.Wrap(err, "features: build")
	}

	counts := fs.Reference.Counts()
	zap.L().Info("features: classified",
		zap.String("component", "features"),
		zap.String("region", region),
		zap.Int("features", len(feats)),
		zap.Int("ignored", ignored),
		zap.Int("candidates", len(fs.Candidates)),
		zap.Int("existing", len(fs.Existing)),
		zap.Int("amenity_food", counts[geo.CategoryFood]),
		zap.Int("amenity_fuel", counts[geo.CategoryFuel]),
		zap.Int("retail", counts[geo.CategoryRetail]),
		zap.Int("residential", counts[geo.CategoryResidential]),
	)
	return fs, nil
}

func kind(tags map[string]string) string {
	if v := tags["amenity"]; v != "" {
		return v
	}
	return tags["shop"]
}
