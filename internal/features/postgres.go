package features

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siting-cli/internal/db"
	"github.com/sells-group/siting-cli/internal/model"
)

// DefaultTable holds imported features when no table is configured.
const DefaultTable = "osm_features"

// featureColumns is the COPY column order used by Import.
var featureColumns = []string{"region", "osm_id", "name", "amenity", "shop", "building", "geom"}

// PostgresSource reads features from a PostGIS table populated by Import.
type PostgresSource struct {
	pool  db.Pool
	table string
}

// NewPostgresSource returns a source reading from table.
func NewPostgresSource(pool db.Pool, table string) *PostgresSource {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSource{pool: pool, table: table}
}

// TableDDL returns the schema for a feature table.
func TableDDL(table string) string {
	ident := pgx.Identifier{table}.Sanitize()
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	region   TEXT NOT NULL,
	osm_id   TEXT NOT NULL,
	name     TEXT,
	amenity  TEXT,
	shop     TEXT,
	building TEXT,
	geom     geometry(Geometry, 4326) NOT NULL,
	PRIMARY KEY (region, osm_id)
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s USING gist (geom);`,
		ident, pgx.Identifier{"idx_" + table + "_geom"}.Sanitize())
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context, region string) (*model.FeatureSet, error) {
	query := fmt.Sprintf(`SELECT osm_id, COALESCE(name, ''), COALESCE(amenity, ''), COALESCE(shop, ''),
		COALESCE(building, ''), ST_AsEWKB(ST_Centroid(geom))
		FROM %s WHERE region = $1 ORDER BY osm_id`, pgx.Identifier{s.table}.Sanitize())

	rows, err := s.pool.Query(ctx, query, region)
	if err != nil {
		return nil, eris.Wrapf(err, "features: query %s", s.table)
	}
	defer rows.Close()

	var feats []Feature
	for rows.Next() {
		var (
			id, name, amenity, shop, building string
			raw                               []byte
		)
		if err := rows.Scan(&id, &name, &amenity, &shop, &building, &raw); err != nil {
			return nil, eris.Wrap(err, "features: scan feature")
		}
		pt, err := db.DecodePoint(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "features: feature %s", id)
		}
		tags := map[string]string{}
		for k, v := range map[string]string{"amenity": amenity, "shop": shop, "building": building, "name": name} {
			if v != "" {
				tags[k] = v
			}
		}
		feats = append(feats, Feature{ID: id, Name: name, Point: pt, Tags: tags})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "features: iterate features")
	}

	return Build(region, feats)
}

// Import replaces the stored features of region.
func Import(ctx context.Context, pool db.Pool, table, region string, feats []Feature) (int64, error) {
	if table == "" {
		table = DefaultTable
	}
	rows := make([][]any, 0, len(feats))
	for _, f := range feats {
		wkb, err := db.EncodePoint(f.Point)
		if err != nil {
			return 0, eris.Wrapf(err, "features: feature %s", f.ID)
		}
		rows = append(rows, []any{
			region, f.ID, nullable(f.Name),
			nullable(f.Tags["amenity"]), nullable(f.Tags["shop"]), nullable(f.Tags["building"]),
			wkb,
		})
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "features: begin import")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	del := fmt.Sprintf(`DELETE FROM %s WHERE region = $1`, pgx.Identifier{table}.Sanitize())
	if _, err := tx.Exec(ctx, del, region); err != nil {
		return 0, eris.Wrapf(err, "features: clear region %s", region)
	}
	n, err := db.CopyFromTx(ctx, tx, table, featureColumns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "features: commit import")
	}

	zap.L().Info("features: imported",
		zap.String("component", "features"),
		zap.String("table", table),
		zap.String("region", region),
		zap.Int64("rows", n),
	)
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
