package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/safestreets/crossing-cli/internal/nearest"
	"github.com/safestreets/crossing-cli/internal/score"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig configures the geometry and search stages.
type PipelineConfig struct {
	SegmentLength     float64 `yaml:"segment_length" mapstructure:"segment_length"`
	SnapDistance      float64 `yaml:"snap_distance" mapstructure:"snap_distance"`
	EnrichSnapDist    float64 `yaml:"enrich_snap_distance" mapstructure:"enrich_snap_distance"`
	SearchRadius      float64 `yaml:"search_radius" mapstructure:"search_radius"`
	SearchScopePolicy string  `yaml:"search_scope_policy" mapstructure:"search_scope_policy"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
}

// ScoringConfig configures the difficulty index.
type ScoringConfig struct {
	Weights         score.Weights `yaml:"weights" mapstructure:"weights"`
	OverrideClasses []string      `yaml:"override_classes" mapstructure:"override_classes"`
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
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CROSSING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "crossings.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.segment_length", 20.0)
	v.SetDefault("pipeline.snap_distance", 0.2)
	v.SetDefault("pipeline.enrich_snap_distance", 0.05)
	v.SetDefault("pipeline.search_radius", 500.0)
	v.SetDefault("pipeline.search_scope_policy", string(nearest.PolicyNameRadius))
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("scoring.weights.distance", 0.25)
	v.SetDefault("scoring.weights.speed", 0.25)
	v.SetDefault("scoring.weights.lanes", 0.25)
	v.SetDefault("scoring.weights.volume", 0.25)
	v.SetDefault("scoring.override_classes", score.DefaultOverrideClasses)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}

	if c.Pipeline.SegmentLength <= 0 {
		return eris.New("config: pipeline.segment_length must be positive")
	}
	if c.Pipeline.SnapDistance < 0 || c.Pipeline.EnrichSnapDist < 0 {
		return eris.New("config: snap distances must not be negative")
	}
	if c.Pipeline.SearchRadius <= 0 {
		return eris.New("config: pipeline.search_radius must be positive")
	}
	if !nearest.Policy(c.Pipeline.SearchScopePolicy).Valid() {
		return eris.Errorf("config: unknown search scope policy %q", c.Pipeline.SearchScopePolicy)
	}

	if sum := c.Scoring.Weights.Sum(); math.Abs(sum-1.0) > 1e-9 {
		return eris.Errorf("config: scoring weights must sum to 1.0, got %g", sum)
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
