// Package config assembles the gateway's runtime configuration from
// environment variables, following the
// teacher's plain-getter idiom (internal/config/config_env.go) for the
// handful of fields that need bespoke parsing/validation, layered under
// caarlos0/env struct binding for everything else.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the gateway's immutable runtime configuration, assembled once
// at startup in Load() and passed down by dependency injection.
type Config struct {
	// HTTP server
	Addr string `env:"ADDR" envDefault:":8080"`

	// Cache
	BadgerDir   string        `env:"BADGER_DIR" envDefault:"./data/cache"`
	BypassCache bool          `env:"BYPASS_CACHE" envDefault:"false"`
	EdgeTTL     time.Duration `env:"EDGE_CACHE_TTL" envDefault:"120h"` // 5 days

	// Analytics sink
	AnalyticsDBPath string `env:"ANALYTICS_DB_PATH" envDefault:"./data/analytics.duckdb"`

	// Upstream credentials
	XboxAPIKey      string   `env:"XBOX_APIKEY"`
	SteamAPIKeys    []string // STEAM_APIKEY, STEAM_APIKEY2..4
	NodecraftAPIKey string   `env:"NODECRAFT_API_KEY"`

	// Hytale OAuth / session pool
	HytaleRefreshToken  string `env:"HYTALE_REFRESH_TOKEN"`
	HytaleProfileUUID   string `env:"HYTALE_PROFILE_UUID"`
	HytaleSessionMin    int    `env:"HYTALE_SESSION_POOL_MIN" envDefault:"1"`
	HytaleSessionMax    int    `env:"HYTALE_SESSION_POOL_MAX" envDefault:"10"`

	// Off-box proxy instances used by the Minecraft and Hytale transport
	// fallback chains.
	ProxyURLs []string
}

// Load reads the process environment into a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.SteamAPIKeys = steamAPIKeys()
	cfg.ProxyURLs = getSliceEnv("PROXY_URLS", nil)

	if cfg.HytaleSessionMin < 1 {
		return nil, fmt.Errorf("HYTALE_SESSION_POOL_MIN must be a positive integer, got %d", cfg.HytaleSessionMin)
	}
	if cfg.HytaleSessionMax < 1 {
		return nil, fmt.Errorf("HYTALE_SESSION_POOL_MAX must be a positive integer, got %d", cfg.HytaleSessionMax)
	}
	if cfg.HytaleSessionMax < cfg.HytaleSessionMin {
		return nil, fmt.Errorf("HYTALE_SESSION_POOL_MAX (%d) must be >= HYTALE_SESSION_POOL_MIN (%d)", cfg.HytaleSessionMax, cfg.HytaleSessionMin)
	}

	return cfg, nil
}

// steamAPIKeys collects STEAM_APIKEY plus the numbered STEAM_APIKEY2..4
// variants (up to four configured keys).
func steamAPIKeys() []string {
	var keys []string
	if v := os.Getenv("STEAM_APIKEY"); v != "" {
		keys = append(keys, v)
	}
	for i := 2; i <= 4; i++ {
		if v := os.Getenv(fmt.Sprintf("STEAM_APIKEY%d", i)); v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}

// getSliceEnv retrieves a comma-separated environment variable as a slice,
// mirroring the teacher's internal/config/config_env.go helper.
func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
