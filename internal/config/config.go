package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Covariate CovariateConfig `yaml:"covariate" mapstructure:"covariate"`
	Features  FeaturesConfig  `yaml:"features" mapstructure:"features"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ScoringConfig configures neighbour scoring and covariate fusion.
type ScoringConfig struct {
	RadiusKM         float64            `yaml:"radius_km" mapstructure:"radius_km"`
	CategoryWeights  map[string]float64 `yaml:"category_weights" mapstructure:"category_weights"`
	PopulationWeight float64            `yaml:"population_weight" mapstructure:"population_weight"`
	NeighbourWeight  float64            `yaml:"neighbour_weight" mapstructure:"neighbour_weight"`
	Workers          int                `yaml:"workers" mapstructure:"workers"`
}

// SelectionConfig configures exclusion rules and the integer program.
type SelectionConfig struct {
	FixedCost              float64 `yaml:"fixed_cost" mapstructure:"fixed_cost"`
	MinSelected            int     `yaml:"min_selected" mapstructure:"min_selected"`
	MinExclusionDistanceKM float64 `yaml:"min_exclusion_distance_km" mapstructure:"min_exclusion_distance_km"`
	SolverTimeoutSecs      int     `yaml:"solver_timeout_secs" mapstructure:"solver_timeout_secs"`
	MaxNodes               int     `yaml:"max_nodes" mapstructure:"max_nodes"`
}

// CovariateConfig configures the population covariate source.
type CovariateConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"` // none, grid, http
	Path          string  `yaml:"path" mapstructure:"path"`
	URL           string  `yaml:"url" mapstructure:"url"`
	BatchSize     int     `yaml:"batch_size" mapstructure:"batch_size"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	NoData        float64 `yaml:"nodata" mapstructure:"nodata"`

	MaxAttempts         int `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffMS      int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// FeaturesConfig configures where region features are loaded from.
type FeaturesConfig struct {
	Source string `yaml:"source" mapstructure:"source"` // geojson, shapefile, postgres
	Path   string `yaml:"path" mapstructure:"path"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// RedisConfig configures the covariate cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // none, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("siting")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("scoring.radius_km", 0.5)
	v.SetDefault("scoring.category_weights", map[string]float64{
		"amenity-food": 1.5,
		"amenity-fuel": 2.0,
		"retail":       1.2,
		"residential":  0.8,
	})
	v.SetDefault("scoring.population_weight", 0.5)
	v.SetDefault("scoring.neighbour_weight", 10.0)
	v.SetDefault("scoring.workers", 0)
	v.SetDefault("selection.fixed_cost", 100000.0)
	v.SetDefault("selection.min_selected", 50)
	v.SetDefault("selection.min_exclusion_distance_km", 0.5)
	v.SetDefault("selection.solver_timeout_secs", 60)
	v.SetDefault("selection.max_nodes", 0)
	v.SetDefault("covariate.provider", "none")
	v.SetDefault("covariate.batch_size", 500)
	v.SetDefault("covariate.rate_per_sec", 5.0)
	v.SetDefault("covariate.timeout_secs", 30)
	v.SetDefault("covariate.cache_ttl_hours", 0)
	v.SetDefault("covariate.nodata", -9999.0)
	v.SetDefault("covariate.max_attempts", 3)
	v.SetDefault("covariate.retry_backoff_ms", 500)
	v.SetDefault("covariate.breaker_threshold", 5)
	v.SetDefault("covariate.breaker_cooldown_secs", 30)
	v.SetDefault("features.source", "geojson")
	v.SetDefault("features.table", "osm_features")
	v.SetDefault("redis.addr", "")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.sqlite_path", "siting.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the sections that have fixed value domains. Scoring and
// selection values are validated by their own packages.
func (c *Config) Validate() error {
	var errs []string

	switch c.Covariate.Provider {
	case "", "none":
	case "grid":
		if c.Covariate.Path == "" {
			errs = append(errs, "covariate.path is required for provider grid")
		}
	case "http":
		if c.Covariate.URL == "" {
			errs = append(errs, "covariate.url is required for provider http")
		}
	default:
		errs = append(errs, fmt.Sprintf("covariate.provider %q must be one of none, grid, http", c.Covariate.Provider))
	}
	if c.Covariate.BatchSize < 0 {
		errs = append(errs, fmt.Sprintf("covariate.batch_size must be >= 0, got %d", c.Covariate.BatchSize))
	}
	if c.Covariate.RatePerSec < 0 || math.IsNaN(c.Covariate.RatePerSec) {
		errs = append(errs, fmt.Sprintf("covariate.rate_per_sec must be >= 0, got %v", c.Covariate.RatePerSec))
	}

	switch c.Features.Source {
	case "", "geojson", "shapefile", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("features.source %q must be one of geojson, shapefile, postgres", c.Features.Source))
	}

	switch c.Store.Driver {
	case "", "none":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for driver sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of none, sqlite, postgres", c.Store.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
