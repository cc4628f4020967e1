// Package config loads and validates the process-wide configuration:
// execution policy defaults, orchestrator tuning, market-data provider
// priority, adaptive tuner switches, and storage/auth secrets.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Provider names recognized by the market-data multiplex.
const (
	ProviderAlpaca        = "alpaca"
	ProviderPolygon       = "polygon"
	ProviderMarketData    = "marketdata"
	ProviderTwelveData    = "twelvedata"
	ProviderUnusualWhales = "unusualwhales"
)

// Config is the fully-resolved process configuration.
type Config struct {
	// Experiment / execution policy
	ExecutionMode   types.ExecutionMode
	SplitPercentage float64
	PolicyVersion   string

	// Portfolio guard / setup validator
	MacroDriftThreshold    float64
	AllowAnticipatoryEntry bool

	// Orchestrator / signal processor
	OrchestratorBatchSize      int
	OrchestratorConcurrency    int
	OrchestratorSignalTimeout  time.Duration
	OrchestratorRetryDelay     time.Duration
	OrchestratorMaxAttempts    int
	SignalDedupWindow          time.Duration

	// Market data
	MarketDataProviderPriority []string

	// Adaptive tuner
	AdaptiveEnabled bool
	AdaptiveDryRun  bool

	// Security / storage
	HMACSecret        string
	HMACEnabled       bool
	DBConnectionString string
	DBPoolMax          int

	// HTTP surface
	Server types.ServerConfig

	// Feature flag refresh cadence
	FeatureFlagRefresh time.Duration
}

// Default returns the documented defaults for every recognized config key.
func Default() *Config {
	return &Config{
		ExecutionMode:   types.ModeShadowOnly,
		SplitPercentage: 0.5,
		PolicyVersion:   "v1.0",

		MacroDriftThreshold:    0.18,
		AllowAnticipatoryEntry: false,

		OrchestratorBatchSize:     10,
		OrchestratorConcurrency:   4,
		OrchestratorSignalTimeout: 30 * time.Second,
		OrchestratorRetryDelay:    2 * time.Second,
		OrchestratorMaxAttempts:   5,
		SignalDedupWindow:         10 * time.Minute,

		MarketDataProviderPriority: []string{
			ProviderAlpaca, ProviderPolygon, ProviderMarketData, ProviderTwelveData,
		},

		AdaptiveEnabled: true,
		AdaptiveDryRun:  false,

		HMACEnabled: true,
		DBPoolMax:   25,

		Server: types.ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			WebSocketPath:  "/ws",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxConnections: 100,
			EnableMetrics:  true,
			MetricsPort:    9090,
		},

		FeatureFlagRefresh: 5 * time.Second,
	}
}

// Load reads configuration from an optional file plus environment
// variables (prefixed SIGNALPIPE_), overlaying Default().
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("SIGNALPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	bindDefaults(v, cfg)

	cfg.ExecutionMode = types.ExecutionMode(v.GetString("executionMode"))
	cfg.SplitPercentage = v.GetFloat64("splitPercentage")
	cfg.PolicyVersion = v.GetString("policyVersion")
	cfg.MacroDriftThreshold = v.GetFloat64("macroDriftThreshold")
	cfg.AllowAnticipatoryEntry = v.GetBool("allowAnticipatoryEntry")

	cfg.OrchestratorBatchSize = v.GetInt("orchestratorBatchSize")
	cfg.OrchestratorConcurrency = v.GetInt("orchestratorConcurrency")
	cfg.OrchestratorSignalTimeout = v.GetDuration("orchestratorSignalTimeoutMs") * time.Millisecond
	cfg.OrchestratorRetryDelay = v.GetDuration("orchestratorRetryDelayMs") * time.Millisecond
	cfg.OrchestratorMaxAttempts = v.GetInt("orchestratorMaxAttempts")
	cfg.SignalDedupWindow = v.GetDuration("signalDedupWindowMinutes") * time.Minute

	if providers := v.GetStringSlice("marketDataProviderPriority"); len(providers) > 0 {
		cfg.MarketDataProviderPriority = providers
	}

	cfg.AdaptiveEnabled = v.GetBool("adaptiveEnabled")
	cfg.AdaptiveDryRun = v.GetBool("adaptiveDryRun")

	cfg.HMACSecret = v.GetString("hmacSecret")
	cfg.HMACEnabled = v.GetBool("hmacEnabled")
	cfg.DBConnectionString = v.GetString("dbConnectionString")
	cfg.DBPoolMax = v.GetInt("dbPoolMax")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("executionMode", string(cfg.ExecutionMode))
	v.SetDefault("splitPercentage", cfg.SplitPercentage)
	v.SetDefault("policyVersion", cfg.PolicyVersion)
	v.SetDefault("macroDriftThreshold", cfg.MacroDriftThreshold)
	v.SetDefault("allowAnticipatoryEntry", cfg.AllowAnticipatoryEntry)
	v.SetDefault("orchestratorBatchSize", cfg.OrchestratorBatchSize)
	v.SetDefault("orchestratorConcurrency", cfg.OrchestratorConcurrency)
	v.SetDefault("orchestratorSignalTimeoutMs", cfg.OrchestratorSignalTimeout.Milliseconds())
	v.SetDefault("orchestratorRetryDelayMs", cfg.OrchestratorRetryDelay.Milliseconds())
	v.SetDefault("orchestratorMaxAttempts", cfg.OrchestratorMaxAttempts)
	v.SetDefault("signalDedupWindowMinutes", int64(cfg.SignalDedupWindow/time.Minute))
	v.SetDefault("marketDataProviderPriority", cfg.MarketDataProviderPriority)
	v.SetDefault("adaptiveEnabled", cfg.AdaptiveEnabled)
	v.SetDefault("adaptiveDryRun", cfg.AdaptiveDryRun)
	v.SetDefault("hmacEnabled", cfg.HMACEnabled)
	v.SetDefault("dbPoolMax", cfg.DBPoolMax)
}

// Validate enforces sane bounds on configured values.
func (c *Config) Validate() error {
	if c.SplitPercentage < 0 || c.SplitPercentage > 1 {
		return fmt.Errorf("config: splitPercentage %f out of [0,1]", c.SplitPercentage)
	}
	switch c.ExecutionMode {
	case types.ModeShadowOnly, types.ModeEngineAPrimary, types.ModeEngineBPrimary, types.ModeSplitCapital:
	default:
		return fmt.Errorf("config: unrecognized executionMode %q", c.ExecutionMode)
	}
	if c.HMACEnabled && c.HMACSecret == "" {
		return fmt.Errorf("config: hmacSecret required when hmacEnabled")
	}
	for _, p := range c.MarketDataProviderPriority {
		switch p {
		case ProviderAlpaca, ProviderPolygon, ProviderMarketData, ProviderTwelveData, ProviderUnusualWhales:
		default:
			return fmt.Errorf("config: unrecognized market data provider %q", p)
		}
	}
	return nil
}
