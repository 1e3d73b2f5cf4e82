package config

import "time"

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultHTTPTimeout          = 60 * time.Second
	DefaultUserAgent            = "enzbench/1.0"
	DefaultRequestsPerSecond    = 1.0
	DefaultBurst                = 1
	DefaultMaxRetries           = 3
	DefaultRetryMaxElapsed      = 2 * time.Minute
	DefaultHTTPConcurrency      = 1
	DefaultKEGGBaseURL          = "http://rest.kegg.jp"
	DefaultKEGGDelay            = time.Second
	DefaultSelenzymeBaseURL     = "http://localhost:32784"
	DefaultSelenzymeTargets     = 200
	DefaultSelenzymeHost        = "83333"
	DefaultSelenzymeFinger      = "Morgan"
	DefaultEzymeURL             = "https://www.genome.jp/tools-bin/e-zyme-ko"
	DefaultTheiaBinary          = "theia-cli"
	DefaultTheiaModel           = "ecreact.ec123"
	DefaultCacheTTL             = 7 * 24 * time.Hour
	DefaultCachePrefix          = "enzbench:"
	DefaultStoragePrefix        = "runs"
	DefaultMetricsNamespace     = "enzbench"
	DefaultVoteDepth            = 3
	DefaultVoteTopK             = 5
	DefaultSimmerPermutations   = 1000
	DefaultSimmerAlpha          = 0.05
	DefaultSimmerSeed           = 42
	DefaultSimmerWorkers        = 4
	DefaultBECPredSeed          = 42
	DefaultBECPredTrainFraction = 0.9
)

// DefaultEvaluateDepths are the EC depths scored when none are configured.
var DefaultEvaluateDepths = []int{1, 2, 3}

// DefaultExcludedClasses are the EC classes dropped from ground truth.
var DefaultExcludedClasses = []int{7}

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set by the caller are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultHTTPTimeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}
	if cfg.HTTP.RequestsPerSecond == 0 {
		cfg.HTTP.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.HTTP.Burst == 0 {
		cfg.HTTP.Burst = DefaultBurst
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = DefaultMaxRetries
	}
	if cfg.HTTP.RetryMaxElapsed == 0 {
		cfg.HTTP.RetryMaxElapsed = DefaultRetryMaxElapsed
	}
	if cfg.HTTP.Concurrency == 0 {
		cfg.HTTP.Concurrency = DefaultHTTPConcurrency
	}

	if cfg.Tools.KEGGBaseURL == "" {
		cfg.Tools.KEGGBaseURL = DefaultKEGGBaseURL
	}
	if cfg.Tools.KEGGDelay == 0 {
		cfg.Tools.KEGGDelay = DefaultKEGGDelay
	}
	if cfg.Tools.Selenzyme.BaseURL == "" {
		cfg.Tools.Selenzyme.BaseURL = DefaultSelenzymeBaseURL
	}
	if cfg.Tools.Selenzyme.Targets == 0 {
		cfg.Tools.Selenzyme.Targets = DefaultSelenzymeTargets
	}
	if cfg.Tools.Selenzyme.Host == "" {
		cfg.Tools.Selenzyme.Host = DefaultSelenzymeHost
	}
	if cfg.Tools.Selenzyme.Fingerprint == "" {
		cfg.Tools.Selenzyme.Fingerprint = DefaultSelenzymeFinger
	}
	if cfg.Tools.EzymeURL == "" {
		cfg.Tools.EzymeURL = DefaultEzymeURL
	}
	if cfg.Tools.TheiaBinary == "" {
		cfg.Tools.TheiaBinary = DefaultTheiaBinary
	}
	if cfg.Tools.TheiaModel == "" {
		cfg.Tools.TheiaModel = DefaultTheiaModel
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = DefaultStoragePrefix
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Vote.Depth == 0 {
		cfg.Vote.Depth = DefaultVoteDepth
	}
	if cfg.Vote.TopK == 0 {
		cfg.Vote.TopK = DefaultVoteTopK
	}
	if len(cfg.Evaluate.Depths) == 0 {
		cfg.Evaluate.Depths = append([]int(nil), DefaultEvaluateDepths...)
	}
	if cfg.Evaluate.ExcludedClasses == nil {
		cfg.Evaluate.ExcludedClasses = append([]int(nil), DefaultExcludedClasses...)
	}

	if cfg.Simmer.Permutations == 0 {
		cfg.Simmer.Permutations = DefaultSimmerPermutations
	}
	if cfg.Simmer.Alpha == 0 {
		cfg.Simmer.Alpha = DefaultSimmerAlpha
	}
	if cfg.Simmer.Seed == 0 {
		cfg.Simmer.Seed = DefaultSimmerSeed
	}
	if cfg.Simmer.Workers == 0 {
		cfg.Simmer.Workers = DefaultSimmerWorkers
	}
	if cfg.BECPred.Seed == 0 {
		cfg.BECPred.Seed = DefaultBECPredSeed
	}
	if cfg.BECPred.TrainFraction == 0 {
		cfg.BECPred.TrainFraction = DefaultBECPredTrainFraction
	}
}

// Default returns a Config populated entirely with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Tools.Selenzyme.NoMSA = true
	ApplyDefaults(cfg)
	return cfg
}
