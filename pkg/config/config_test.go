package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		config     *Config
		wantErr    bool
		wantErrMsg string
	}{
		{
			name: "valid config",
			config: &Config{
				Name:     "test-pipeline",
				Network:  "mainnet",
				Database: "postgres://localhost/test",
			},
			wantErr: false,
		},
		{
			name: "valid config with explorer",
			config: &Config{
				Name:     "test-pipeline",
				Network:  "mainnet",
				Database: "postgres://localhost/test",
				Explorer: ExplorerConfig{
					APIURL:  "https://api.etherscan.io/api",
					APIKeys: []string{"key1", "key2"},
				},
			},
			wantErr: false,
		},
		{
			name: "missing name",
			config: &Config{
				Network:  "mainnet",
				Database: "postgres://localhost/test",
			},
			wantErr:    true,
			wantErrMsg: "name is required",
		},
		{
			name: "missing network",
			config: &Config{
				Name:     "test",
				Database: "postgres://localhost/test",
			},
			wantErr:    true,
			wantErrMsg: "network is required",
		},
		{
			name: "missing database",
			config: &Config{
				Name:    "test",
				Network: "mainnet",
			},
			wantErr:    true,
			wantErrMsg: "database connection string is required",
		},
		{
			name: "explorer url without keys",
			config: &Config{
				Name:     "test",
				Network:  "mainnet",
				Database: "postgres://localhost/test",
				Explorer: ExplorerConfig{
					APIURL: "https://api.etherscan.io/api",
				},
			},
			wantErr:    true,
			wantErrMsg: "at least one API key is required",
		},
		{
			name: "empty social credential",
			config: &Config{
				Name:     "test",
				Network:  "mainnet",
				Database: "postgres://localhost/test",
				Social: SocialConfig{
					Credentials: []SocialCredential{
						{CSRFToken: "token-only"},
					},
				},
			},
			wantErr:    true,
			wantErrMsg: "cookie or bearer is required",
		},
		{
			name: "social credential with bearer only",
			config: &Config{
				Name:     "test",
				Network:  "mainnet",
				Database: "postgres://localhost/test",
				Social: SocialConfig{
					Credentials: []SocialCredential{
						{Bearer: "AAAA"},
					},
				},
			},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErrMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	setDefaults()

	require.Equal(t, "mainnet", viper.GetString("network"))
	require.Equal(t, 9090, viper.GetInt("server.metrics_port"))
	require.Equal(t, uint64(100), viper.GetUint64("monitor.lookback_blocks"))
	require.Equal(t, 3, viper.GetInt("monitor.max_retries"))
	require.Equal(t, "ether", viper.GetString("audit.chain"))
	require.Equal(t, "grok", viper.GetString("llm.provider"))

	require.Equal(t, time.Minute, viper.GetDuration("intervals.source_discovery"))
	require.Equal(t, 4*time.Minute, viper.GetDuration("intervals.source_retry"))
	require.Equal(t, 5*time.Minute, viper.GetDuration("intervals.audit"))
	require.Equal(t, time.Minute, viper.GetDuration("intervals.links"))
	require.Equal(t, time.Minute, viper.GetDuration("intervals.social_discover"))
	require.Equal(t, 2*time.Minute, viper.GetDuration("intervals.social_check"))
	require.Equal(t, 5*time.Minute, viper.GetDuration("intervals.social_tweets"))
	require.Equal(t, time.Minute, viper.GetDuration("intervals.classify_contract"))
	require.Equal(t, 24*time.Hour, viper.GetDuration("intervals.classify_account"))
}

func TestLoadAppliesNetworkPreset(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("name", "test-pipeline")
	viper.Set("network", "mainnet")
	viper.Set("database", "postgres://localhost/test")

	t.Setenv("DATABASE_URL", "")
	t.Setenv("RPC_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, uint64(1), cfg.ChainID)
	require.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", cfg.WETHAddress)
	require.Equal(t, "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", cfg.FactoryAddress)
	require.Equal(t, 10*time.Second, cfg.PollInterval)
	require.Equal(t, "https://eth.llamarpc.com", cfg.RPCURL)
}

func TestLoadUnknownNetwork(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("name", "test-pipeline")
	viper.Set("network", "does-not-exist")
	viper.Set("database", "postgres://localhost/test")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown network")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("name", "test-pipeline")
	viper.Set("network", "mainnet")
	viper.Set("database", "postgres://localhost/from-config")
	viper.Set("rpc_url", "https://rpc.from-config.example")

	origDB := os.Getenv("DATABASE_URL")
	origRPC := os.Getenv("RPC_URL")
	defer func() {
		os.Setenv("DATABASE_URL", origDB)
		os.Setenv("RPC_URL", origRPC)
	}()

	os.Setenv("DATABASE_URL", "postgres://localhost/from-env")
	os.Setenv("RPC_URL", "https://rpc.from-env.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/from-env", cfg.Database)
	require.Equal(t, "https://rpc.from-env.example", cfg.RPCURL)
}

func TestConfigStructs(t *testing.T) {
	cfg := Config{
		Name:     "tokenscout",
		Network:  "mainnet",
		Database: "postgres://localhost/tokenscout",
		RPCURL:   "https://rpc.example.com",
		Explorer: ExplorerConfig{
			APIURL:  "https://api.etherscan.io/api",
			APIKeys: []string{"key1"},
		},
		Audit: AuditConfig{
			APIURL:  "https://audit.example.com/pairs",
			Chain:   "ether",
			Headers: map[string]string{"X-Custom": "value"},
		},
		Social: SocialConfig{
			UserURL:     "https://social.example.com/user",
			TimelineURL: "https://social.example.com/timeline",
			Credentials: []SocialCredential{
				{Cookie: "c", Bearer: "b", CSRFToken: "t"},
			},
		},
		LLM: LLMConfig{
			Provider: "grok",
			APIKey:   "sk-test",
		},
		Monitor: MonitorConfig{
			LookbackBlocks: 10000,
			MaxRetries:     3,
		},
		Server: ServerConfig{MetricsPort: 9090},
	}

	require.Equal(t, "tokenscout", cfg.Name)
	require.Equal(t, "mainnet", cfg.Network)
	require.Len(t, cfg.Explorer.APIKeys, 1)
	require.Equal(t, "ether", cfg.Audit.Chain)
	require.Equal(t, "value", cfg.Audit.Headers["X-Custom"])
	require.Len(t, cfg.Social.Credentials, 1)
	require.Equal(t, "grok", cfg.LLM.Provider)
	require.Equal(t, uint64(10000), cfg.Monitor.LookbackBlocks)
	require.Equal(t, 9090, cfg.Server.MetricsPort)
}
