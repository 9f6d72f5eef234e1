package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ivory-showcase/showcase-backend/internal/ledger"
	"github.com/joho/godotenv"
)

const (
	DefaultOwnerAddress = "0x18a4c45a96c15d62b82b341f18738125bf875fee86057d88589a183700601a1c"
	DefaultBlobType     = "0xfdc88f7d7cf30afab2f82e8380d11ee8f70efb90e863d1de8616fae1bb09ea77::blob::Blob"
)

type Config struct {
	Server   ServerConfig
	Ledger   LedgerConfig
	Showcase ShowcaseConfig
	Redis    RedisConfig
	App      AppConfig
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

type LedgerConfig struct {
	Network   string
	RPCURL    string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

type ShowcaseConfig struct {
	OwnerAddress    string
	BlobType        string
	Concurrency     int
	Freshness       time.Duration
	RefreshSchedule string
}

type RedisConfig struct {
	Addr     string // empty disables the stage cache
	Password string
	DB       int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Ledger: LedgerConfig{
			Network:   getEnv("SUI_NETWORK", "mainnet"),
			RPCURL:    getEnv("SUI_RPC_URL", ""),
			Timeout:   getEnvAsDuration("SUI_RPC_TIMEOUT", ledger.DefaultTimeout),
			RateLimit: getEnvAsFloat("SUI_RPC_RATE_LIMIT", 10),
			Burst:     getEnvAsInt("SUI_RPC_BURST", 20),
		},
		Showcase: ShowcaseConfig{
			OwnerAddress:    getEnv("SHOWCASE_OWNER_ADDRESS", DefaultOwnerAddress),
			BlobType:        getEnv("SHOWCASE_BLOB_TYPE", DefaultBlobType),
			Concurrency:     getEnvAsInt("CASCADE_CONCURRENCY", 8),
			Freshness:       getEnvAsDuration("CACHE_FRESHNESS", 5*time.Minute),
			RefreshSchedule: getEnvRaw("REFRESH_SCHEDULE", "0 */5 * * * *"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if cfg.Ledger.RPCURL == "" {
		if url, ok := ledger.FullnodeURL(cfg.Ledger.Network); ok {
			cfg.Ledger.RPCURL = url
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Ledger.RPCURL == "" {
		return fmt.Errorf("SUI_RPC_URL is required for network %q", c.Ledger.Network)
	}

	if !strings.HasPrefix(c.Showcase.OwnerAddress, ledger.AddressPrefix) {
		return fmt.Errorf("SHOWCASE_OWNER_ADDRESS must start with %s", ledger.AddressPrefix)
	}

	if c.Showcase.BlobType == "" {
		return fmt.Errorf("SHOWCASE_BLOB_TYPE is required")
	}

	if c.Showcase.Concurrency < 1 {
		return fmt.Errorf("CASCADE_CONCURRENCY must be positive")
	}

	if c.Showcase.Freshness <= 0 {
		return fmt.Errorf("CACHE_FRESHNESS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRaw distinguishes an explicitly empty variable from an unset one.
func getEnvRaw(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
