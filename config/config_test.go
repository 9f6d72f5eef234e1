package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SUI_NETWORK", "SUI_RPC_URL", "SUI_RPC_TIMEOUT", "SUI_RPC_RATE_LIMIT",
		"SUI_RPC_BURST", "SHOWCASE_OWNER_ADDRESS", "SHOWCASE_BLOB_TYPE", "CASCADE_CONCURRENCY",
		"CACHE_FRESHNESS", "REDIS_ADDR", "CORS_ALLOWED_ORIGINS", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "mainnet", cfg.Ledger.Network)
	assert.Equal(t, "https://fullnode.mainnet.sui.io:443", cfg.Ledger.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 10.0, cfg.Ledger.RateLimit)
	assert.Equal(t, 20, cfg.Ledger.Burst)
	assert.Equal(t, DefaultOwnerAddress, cfg.Showcase.OwnerAddress)
	assert.Equal(t, DefaultBlobType, cfg.Showcase.BlobType)
	assert.Equal(t, 8, cfg.Showcase.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Showcase.Freshness)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "development", cfg.App.Environment)
}

func TestGetEnvRaw(t *testing.T) {
	assert.Equal(t, "0 */5 * * * *", getEnvRaw("SHOWCASE_TEST_UNSET_SCHEDULE", "0 */5 * * * *"))

	t.Setenv("SHOWCASE_TEST_SCHEDULE", "")
	assert.Empty(t, getEnvRaw("SHOWCASE_TEST_SCHEDULE", "0 */5 * * * *"))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SUI_NETWORK", "testnet")
	t.Setenv("SUI_RPC_URL", "")
	t.Setenv("SUI_RPC_TIMEOUT", "5s")
	t.Setenv("CASCADE_CONCURRENCY", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REFRESH_SCHEDULE", "")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://fullnode.testnet.sui.io:443", cfg.Ledger.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 8, cfg.Showcase.Concurrency, "invalid integers fall back to the default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Empty(t, cfg.Showcase.RefreshSchedule)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_CustomEndpointWins(t *testing.T) {
	t.Setenv("SUI_NETWORK", "somewhere")
	t.Setenv("SUI_RPC_URL", "http://node.internal:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://node.internal:9000", cfg.Ledger.RPCURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080"},
			Ledger: LedgerConfig{Network: "mainnet", RPCURL: "https://node"},
			Showcase: ShowcaseConfig{
				OwnerAddress: DefaultOwnerAddress,
				BlobType:     DefaultBlobType,
				Concurrency:  1,
				Freshness:    time.Minute,
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network without url", func(c *Config) { c.Ledger.RPCURL = "" }},
		{"owner without prefix", func(c *Config) { c.Showcase.OwnerAddress = "18a4" }},
		{"empty blob type", func(c *Config) { c.Showcase.BlobType = "" }},
		{"zero concurrency", func(c *Config) { c.Showcase.Concurrency = 0 }},
		{"zero freshness", func(c *Config) { c.Showcase.Freshness = 0 }},
		{"empty port", func(c *Config) { c.Server.Port = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
