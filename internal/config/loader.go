package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "ENZBENCH"

// SearchPaths lists the config files tried, in order, when no explicit path
// is given.
func SearchPaths() []string {
	paths := []string{"enzbench.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".enzbench", "config.yaml"))
	}
	return append(paths, "/etc/enzbench/config.yaml")
}

// newViper builds a Viper instance with YAML file type, the ENZBENCH_ env
// prefix and a "." to "_" key replacer so that "http.timeout" resolves to
// ENZBENCH_HTTP_TIMEOUT. Every key is registered with its default so that
// environment overrides reach Unmarshal even without a config file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

func registerDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.requests_per_second", d.HTTP.RequestsPerSecond)
	v.SetDefault("http.burst", d.HTTP.Burst)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.retry_max_elapsed", d.HTTP.RetryMaxElapsed)
	v.SetDefault("http.concurrency", d.HTTP.Concurrency)

	v.SetDefault("tools.kegg_base_url", d.Tools.KEGGBaseURL)
	v.SetDefault("tools.kegg_delay", d.Tools.KEGGDelay)
	v.SetDefault("tools.selenzyme.base_url", d.Tools.Selenzyme.BaseURL)
	v.SetDefault("tools.selenzyme.targets", d.Tools.Selenzyme.Targets)
	v.SetDefault("tools.selenzyme.no_msa", d.Tools.Selenzyme.NoMSA)
	v.SetDefault("tools.selenzyme.host", d.Tools.Selenzyme.Host)
	v.SetDefault("tools.selenzyme.fingerprint", d.Tools.Selenzyme.Fingerprint)
	v.SetDefault("tools.ezyme_url", d.Tools.EzymeURL)
	v.SetDefault("tools.theia_binary", d.Tools.TheiaBinary)
	v.SetDefault("tools.theia_model", d.Tools.TheiaModel)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.prefix", d.Cache.Prefix)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", d.Storage.Prefix)

	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("vote.depth", d.Vote.Depth)
	v.SetDefault("vote.top_k", d.Vote.TopK)
	v.SetDefault("evaluate.depths", d.Evaluate.Depths)
	v.SetDefault("evaluate.excluded_classes", d.Evaluate.ExcludedClasses)

	v.SetDefault("simmer.permutations", d.Simmer.Permutations)
	v.SetDefault("simmer.alpha", d.Simmer.Alpha)
	v.SetDefault("simmer.seed", d.Simmer.Seed)
	v.SetDefault("simmer.workers", d.Simmer.Workers)
	v.SetDefault("becpred.seed", d.BECPred.Seed)
	v.SetDefault("becpred.train_fraction", d.BECPred.TrainFraction)
}

// Load reads the YAML file at configPath, merges ENZBENCH_* environment
// overrides, applies defaults and validates the result. An empty configPath
// tries SearchPaths and falls back to environment and defaults when none of
// them exists.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from ENZBENCH_* environment variables and
// defaults, with no config file.
//
//	ENZBENCH_<SECTION>_<FIELD>   e.g.  ENZBENCH_HTTP_TIMEOUT, ENZBENCH_CACHE_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad wraps Load and panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
