package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safestreets/crossing-cli/internal/score"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", Path: "crossings.db"},
		Pipeline: PipelineConfig{
			SegmentLength:     20,
			SnapDistance:      0.2,
			EnrichSnapDist:    0.05,
			SearchRadius:      500,
			SearchScopePolicy: "name-radius",
		},
		Scoring: ScoringConfig{
			Weights: score.Weights{Distance: 0.25, Speed: 0.25, Lanes: 0.25, Volume: 0.25},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 20.0, cfg.Pipeline.SegmentLength)
	assert.Equal(t, 0.2, cfg.Pipeline.SnapDistance)
	assert.Equal(t, 0.05, cfg.Pipeline.EnrichSnapDist)
	assert.Equal(t, 500.0, cfg.Pipeline.SearchRadius)
	assert.Equal(t, "name-radius", cfg.Pipeline.SearchScopePolicy)
	assert.Equal(t, 0, cfg.Pipeline.Workers)
	assert.InDelta(t, 1.0, cfg.Scoring.Weights.Sum(), 1e-12)
	assert.Equal(t, []string{"residential", "living_street", "service"}, cfg.Scoring.OverrideClasses)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CROSSING_PIPELINE_SEARCH_SCOPE_POLICY", "connected-component")
	t.Setenv("CROSSING_STORE_DRIVER", "postgres")
	t.Setenv("CROSSING_STORE_DATABASE_URL", "postgres://localhost/crossings")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "connected-component", cfg.Pipeline.SearchScopePolicy)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.Weights.Volume = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.SearchScopePolicy = "closest-anywhere"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.Store.DatabaseURL = "postgres://localhost/crossings"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSegmentLength(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.SegmentLength = 0
	assert.Error(t, cfg.Validate())
}
