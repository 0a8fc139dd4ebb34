package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, 1000, cfg.MaxResampleAttempts)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetryMax)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "127.0.0.1", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"SOCIALCHOICE_SEED":     "42",
		"MAX_RESAMPLE_ATTEMPTS": "10",
		"ENVIRONMENT":           "dev",
		"FETCH_TIMEOUT":         "5s",
		"CACHE_ENABLED":         "true",
		"REDIS_PORT":            "6380",
	}))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 10, cfg.MaxResampleAttempts)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 6380, cfg.RedisPort)

	_, err = loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"SOCIALCHOICE_SEED": "not-a-number",
	}))
	assert.Error(t, err)
}

func TestLoadExperiment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: data/00004-00000001.soc
missing_zero: false
normalization: unit_sum
distributions:
  - name: uniform
    repeat: 5
  - name: power
    shape: 2
rules:
  - name: plurality
  - name: k_approval
    k: 2
  - name: scoring
    weights: [3, 1, 0, 0]
output:
  table: out/distortion.csv
`), 0o600))

	exp, err := LoadExperiment(path)
	require.NoError(t, err)

	assert.Equal(t, "data/00004-00000001.soc", exp.Input)
	assert.False(t, exp.MissingIsZero())
	assert.Equal(t, DefaultTrials, exp.Trials)
	assert.Equal(t, []utility.DistributionSpec{
		{Name: "uniform", Repeat: 5},
		{Name: "power", Repeat: 1, Shape: 2},
	}, exp.Distributions)
	require.Len(t, exp.Rules, 3)
	assert.Equal(t, 2, exp.Rules[1].K)
	assert.Equal(t, []float64{3, 1, 0, 0}, exp.Rules[2].Weights)
	assert.Equal(t, "out/distortion.csv", exp.Output.Table)
}

func TestParseExperimentInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"no input":         "distributions: [{name: uniform}]\nrules: [{name: borda}]",
		"no distributions": "input: a.soc\nrules: [{name: borda}]",
		"no rules":         "input: a.soc\ndistributions: [{name: uniform}]",
		"negative trials":  "input: a.soc\ntrials: -1\ndistributions: [{name: uniform}]\nrules: [{name: borda}]",
	} {
		_, err := ParseExperiment([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidExperiment, name)
	}

	_, err := ParseExperiment([]byte("input: a.soc\ndistributions: [{name: cauchy}]\nrules: [{name: borda}]"))
	assert.ErrorIs(t, err, utility.ErrInvalidDistribution)

	_, err = ParseExperiment([]byte("input: a.soc\nnormalization: l2\ndistributions: [{name: uniform}]\nrules: [{name: borda}]"))
	assert.ErrorIs(t, err, utility.ErrUnknownNormalization)

	exp, err := ParseExperiment([]byte("input: a.soc\ndistributions: [{name: uniform}]\nrules: [{name: borda}]"))
	require.NoError(t, err)
	assert.True(t, exp.MissingIsZero())
}
