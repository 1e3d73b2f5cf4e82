// Package config defines the configuration structures for enzbench. No I/O or
// parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// LogConfig controls the zap logger built by the CLI.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // debug | info | warn | error
	Format      string   `mapstructure:"format"` // console | json
	OutputPaths []string `mapstructure:"output_paths"`
}

// HTTPConfig holds the shared remote-access tunables.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	RetryMaxElapsed   time.Duration `mapstructure:"retry_max_elapsed"`
	Concurrency       int           `mapstructure:"concurrency"`
}

// SelenzymeConfig holds the Selenzyme server location and form settings.
type SelenzymeConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	Targets     int      `mapstructure:"targets"`
	NoMSA       bool     `mapstructure:"no_msa"`
	Host        string   `mapstructure:"host"`
	Fingerprint string   `mapstructure:"fingerprint"`
	DBFiles     []string `mapstructure:"db_files"`
}

// ToolsConfig holds the locations of the external prediction tools.
type ToolsConfig struct {
	KEGGBaseURL string          `mapstructure:"kegg_base_url"`
	KEGGDelay   time.Duration   `mapstructure:"kegg_delay"`
	Selenzyme   SelenzymeConfig `mapstructure:"selenzyme"`
	EzymeURL    string          `mapstructure:"ezyme_url"`
	TheiaBinary string          `mapstructure:"theia_binary"`
	TheiaModel  string          `mapstructure:"theia_model"`
}

// CacheConfig holds the optional Redis response cache settings.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// StorageConfig holds the optional MinIO artifact store settings.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Textfile  string `mapstructure:"textfile"`
}

// VoteConfig holds consensus settings.
type VoteConfig struct {
	Depth int `mapstructure:"depth"`
	TopK  int `mapstructure:"top_k"`
}

// EvaluateConfig holds scoring settings.
type EvaluateConfig struct {
	Depths          []int `mapstructure:"depths"`
	ExcludedClasses []int `mapstructure:"excluded_classes"`
}

// SimmerConfig holds the enrichment test settings.
type SimmerConfig struct {
	Permutations int     `mapstructure:"permutations"`
	Alpha        float64 `mapstructure:"alpha"`
	Seed         int64   `mapstructure:"seed"`
	Workers      int     `mapstructure:"workers"`
}

// BECPredConfig holds the dataset split settings.
type BECPredConfig struct {
	Seed          int64   `mapstructure:"seed"`
	TrainFraction float64 `mapstructure:"train_fraction"`
}

// Config is the root configuration object.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Vote     VoteConfig     `mapstructure:"vote"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
	Simmer   SimmerConfig   `mapstructure:"simmer"`
	BECPred  BECPredConfig  `mapstructure:"becpred"`
}

// Validate performs semantic validation of the fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected console|json", c.Log.Format)
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http.timeout must be > 0, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: http.requests_per_second must be > 0, got %g", c.HTTP.RequestsPerSecond)
	}
	if c.HTTP.Concurrency < 1 {
		return fmt.Errorf("config: http.concurrency must be >= 1, got %d", c.HTTP.Concurrency)
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("config: cache.addr is required when the cache is enabled")
	}
	if c.Storage.Endpoint != "" && c.Storage.Bucket == "" {
		return fmt.Errorf("config: storage.bucket is required when storage.endpoint is set")
	}

	if c.Vote.Depth < 1 || c.Vote.Depth > 4 {
		return fmt.Errorf("config: vote.depth %d is out of range [1, 4]", c.Vote.Depth)
	}
	if c.Vote.TopK < 1 {
		return fmt.Errorf("config: vote.top_k must be >= 1, got %d", c.Vote.TopK)
	}
	for _, d := range c.Evaluate.Depths {
		if d < 1 || d > 4 {
			return fmt.Errorf("config: evaluate.depths entry %d is out of range [1, 4]", d)
		}
	}

	if c.Simmer.Permutations < 1 {
		return fmt.Errorf("config: simmer.permutations must be >= 1, got %d", c.Simmer.Permutations)
	}
	if c.Simmer.Alpha <= 0 || c.Simmer.Alpha >= 1 {
		return fmt.Errorf("config: simmer.alpha %g is out of range (0, 1)", c.Simmer.Alpha)
	}
	if c.BECPred.TrainFraction <= 0 || c.BECPred.TrainFraction > 1 {
		return fmt.Errorf("config: becpred.train_fraction %g is out of range (0, 1]", c.BECPred.TrainFraction)
	}
	return nil
}
