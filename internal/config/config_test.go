package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []int{1, 2, 3}, cfg.Evaluate.Depths)
	assert.Equal(t, []int{7}, cfg.Evaluate.ExcludedClasses)
	assert.Equal(t, 3, cfg.Vote.Depth)
	assert.Equal(t, 5, cfg.Vote.TopK)
	assert.True(t, cfg.Tools.Selenzyme.NoMSA)
	assert.Equal(t, "ecreact.ec123", cfg.Tools.TheiaModel)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
		errMsg string
	}{
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero timeout", func(c *config.Config) { c.HTTP.Timeout = -time.Second }, "http.timeout"},
		{"zero rate", func(c *config.Config) { c.HTTP.RequestsPerSecond = -1 }, "requests_per_second"},
		{"no concurrency", func(c *config.Config) { c.HTTP.Concurrency = 0 }, "http.concurrency"},
		{"cache without addr", func(c *config.Config) { c.Cache.Enabled = true }, "cache.addr"},
		{"storage without bucket", func(c *config.Config) { c.Storage.Endpoint = "localhost:9000" }, "storage.bucket"},
		{"vote depth", func(c *config.Config) { c.Vote.Depth = 5 }, "vote.depth"},
		{"top k", func(c *config.Config) { c.Vote.TopK = 0 }, "vote.top_k"},
		{"eval depth", func(c *config.Config) { c.Evaluate.Depths = []int{1, 0} }, "evaluate.depths"},
		{"permutations", func(c *config.Config) { c.Simmer.Permutations = 0 }, "simmer.permutations"},
		{"alpha", func(c *config.Config) { c.Simmer.Alpha = 1 }, "simmer.alpha"},
		{"train fraction", func(c *config.Config) { c.BECPred.TrainFraction = 1.5 }, "train_fraction"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "debug"
	cfg.Simmer.Permutations = 50
	cfg.Evaluate.Depths = []int{4}
	cfg.Evaluate.ExcludedClasses = []int{}

	config.ApplyDefaults(cfg)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Simmer.Permutations)
	assert.Equal(t, []int{4}, cfg.Evaluate.Depths)
	assert.Empty(t, cfg.Evaluate.ExcludedClasses)
	assert.Equal(t, config.DefaultKEGGBaseURL, cfg.Tools.KEGGBaseURL)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}
