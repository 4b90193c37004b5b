// Package config provides configuration management for tokenscout.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tokenscout configuration.
type Config struct {
	// Name is the pipeline instance name.
	Name string `mapstructure:"name"`

	// Network is the target network (mainnet, sepolia).
	Network string `mapstructure:"network"`

	// Database is the PostgreSQL connection string.
	Database string `mapstructure:"database"`

	// RPCURL is the chain RPC endpoint (overrides network preset).
	RPCURL string `mapstructure:"rpc_url"`

	// Explorer holds block-explorer API configuration.
	Explorer ExplorerConfig `mapstructure:"explorer"`

	// Audit holds security-audit API configuration.
	Audit AuditConfig `mapstructure:"audit"`

	// Social holds social-platform API configuration.
	Social SocialConfig `mapstructure:"social"`

	// LLM holds classifier model provider configuration.
	LLM LLMConfig `mapstructure:"llm"`

	// Monitor holds chain-monitor configuration.
	Monitor MonitorConfig `mapstructure:"monitor"`

	// Intervals holds the per-collector sweep cadences.
	Intervals IntervalConfig `mapstructure:"intervals"`

	// Server holds the metrics server configuration.
	Server ServerConfig `mapstructure:"server"`

	// Derived fields (populated from network preset).
	ChainID        uint64
	WETHAddress    string
	FactoryAddress string
	PollInterval   time.Duration
}

// ExplorerConfig defines the block-explorer source-code API.
type ExplorerConfig struct {
	// APIURL is the explorer API base URL.
	APIURL string `mapstructure:"api_url"`

	// APIKeys is the pool of API keys, one chosen at random per call.
	APIKeys []string `mapstructure:"api_keys"`
}

// AuditConfig defines the security-audit API.
type AuditConfig struct {
	// APIURL is the pair-audit endpoint URL.
	APIURL string `mapstructure:"api_url"`

	// Chain is the chain slug the audit provider expects.
	Chain string `mapstructure:"chain"`

	// Headers are sent verbatim with every audit request.
	Headers map[string]string `mapstructure:"headers"`
}

// SocialCredential is one cookie/header credential set for the platform API.
type SocialCredential struct {
	// Cookie is the raw Cookie header value.
	Cookie string `mapstructure:"cookie"`

	// Bearer is the Authorization bearer token.
	Bearer string `mapstructure:"bearer"`

	// CSRFToken is the x-csrf-token header value.
	CSRFToken string `mapstructure:"csrf_token"`
}

// SocialConfig defines the social-platform API.
type SocialConfig struct {
	// UserURL is the profile-by-username endpoint.
	UserURL string `mapstructure:"user_url"`

	// TimelineURL is the timeline-by-user-id endpoint.
	TimelineURL string `mapstructure:"timeline_url"`

	// UserFeatures is the platform feature-flag blob for profile lookups.
	UserFeatures string `mapstructure:"user_features"`

	// TweetFeatures is the platform feature-flag blob for timeline lookups.
	TweetFeatures string `mapstructure:"tweet_features"`

	// Credentials is the pool of credential sets, one chosen at random per request.
	Credentials []SocialCredential `mapstructure:"credentials"`
}

// LLMConfig defines the classifier model provider.
type LLMConfig struct {
	// Provider selects the model provider (grok, deepseek, openai).
	Provider string `mapstructure:"provider"`

	// APIKey authenticates against the provider.
	APIKey string `mapstructure:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `mapstructure:"base_url"`

	// Model overrides the provider's default model name.
	Model string `mapstructure:"model"`
}

// MonitorConfig holds chain-monitor configuration.
type MonitorConfig struct {
	// LookbackBlocks is how far behind head the first scan starts.
	LookbackBlocks uint64 `mapstructure:"lookback_blocks"`

	// MaxRetries is the maximum RPC retry attempts per block.
	MaxRetries int `mapstructure:"max_retries"`
}

// IntervalConfig holds the sweep cadence for every collector task.
type IntervalConfig struct {
	SourceDiscovery  time.Duration `mapstructure:"source_discovery"`
	SourceRetry      time.Duration `mapstructure:"source_retry"`
	Audit            time.Duration `mapstructure:"audit"`
	Links            time.Duration `mapstructure:"links"`
	SocialDiscover   time.Duration `mapstructure:"social_discover"`
	SocialCheck      time.Duration `mapstructure:"social_check"`
	SocialTweets     time.Duration `mapstructure:"social_tweets"`
	ClassifyContract time.Duration `mapstructure:"classify_contract"`
	ClassifyAccount  time.Duration `mapstructure:"classify_account"`
}

// ServerConfig holds the metrics server configuration.
type ServerConfig struct {
	// MetricsPort is the Prometheus metrics port.
	MetricsPort int `mapstructure:"metrics_port"`
}

// Load reads configuration from file and environment.
//
// Returns:
//   - *Config: the loaded configuration
//   - error: nil on success, configuration error on failure
func Load() (*Config, error) {
	cfg := &Config{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Apply network preset
	preset, ok := NetworkPresets[cfg.Network]
	if !ok {
		return nil, fmt.Errorf("unknown network: %s (valid: mainnet, sepolia)", cfg.Network)
	}

	cfg.ChainID = preset.ChainID
	cfg.WETHAddress = preset.WETHAddress
	cfg.FactoryAddress = preset.FactoryAddress
	cfg.PollInterval = preset.PollInterval

	// Use preset RPC if not overridden
	if cfg.RPCURL == "" {
		cfg.RPCURL = preset.DefaultRPC
	}

	// Allow environment variable override for database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database = dbURL
	}

	// Allow environment variable override for RPC
	if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		cfg.RPCURL = rpcURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
//
// Returns:
//   - error: nil if valid, validation error otherwise
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database connection string is required (set DATABASE_URL env var or database in config)")
	}
	if c.Explorer.APIURL != "" && len(c.Explorer.APIKeys) == 0 {
		return fmt.Errorf("explorer: at least one API key is required when api_url is set")
	}
	for i, cred := range c.Social.Credentials {
		if cred.Cookie == "" && cred.Bearer == "" {
			return fmt.Errorf("social credential %d: cookie or bearer is required", i)
		}
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("network", "mainnet")
	viper.SetDefault("server.metrics_port", 9090)
	viper.SetDefault("monitor.lookback_blocks", 100)
	viper.SetDefault("monitor.max_retries", 3)
	viper.SetDefault("audit.chain", "ether")
	viper.SetDefault("llm.provider", "grok")
	viper.SetDefault("intervals.source_discovery", "1m")
	viper.SetDefault("intervals.source_retry", "4m")
	viper.SetDefault("intervals.audit", "5m")
	viper.SetDefault("intervals.links", "1m")
	viper.SetDefault("intervals.social_discover", "1m")
	viper.SetDefault("intervals.social_check", "2m")
	viper.SetDefault("intervals.social_tweets", "5m")
	viper.SetDefault("intervals.classify_contract", "1m")
	viper.SetDefault("intervals.classify_account", "24h")
}
