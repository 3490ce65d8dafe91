// Package config loads the small, flat set of keys every broker adapter
// needs to construct itself, following the same env-first pattern the
// teacher adapter used for its test configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the runtime-typed configuration bag passed to a broker
// adapter constructor. Which keys are required depends on the broker and
// its auth mode; each vendor package validates its own subset.
type Config struct {
	BrokerID       string
	AuthMode       string // "MANUAL" or "AUTO"
	APIKey         string
	AccessToken    string // MANUAL mode: pre-obtained token
	ClientID       string // AUTO mode
	PIN            string // AUTO mode
	TOTPSecret     string // AUTO mode
	CacheDir       string // file-backed session cache directory; empty means "cache"
	Extra          map[string]string
}

// Get returns a named extra key, or "" if absent.
func (c Config) Get(key string) string {
	if c.Extra == nil {
		return ""
	}
	return c.Extra[key]
}

// Load populates a Config from environment variables, first loading a
// local .env file if one is present (a no-op if it isn't — mirrors
// godotenv's own "missing file is fine" contract). Intended for the
// CLI/example entry point; library embedders should build a Config
// literal directly instead.
func Load(prefix string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BrokerID:    os.Getenv(prefix + "_BROKER_ID"),
		AuthMode:    envOr(prefix+"_AUTH_MODE", "MANUAL"),
		APIKey:      os.Getenv(prefix + "_API_KEY"),
		AccessToken: os.Getenv(prefix + "_ACCESS_TOKEN"),
		ClientID:    os.Getenv(prefix + "_CLIENT_ID"),
		PIN:         os.Getenv(prefix + "_PIN"),
		TOTPSecret:  os.Getenv(prefix + "_TOTP_SECRET"),
		CacheDir:    envOr(prefix+"_CACHE_DIR", "cache"),
	}
	if cfg.BrokerID == "" {
		return cfg, fmt.Errorf("config: %s_BROKER_ID is required", prefix)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// BoolEnv parses an environment variable as a bool, defaulting to false on
// absence or parse failure — mirrors the teacher's LoadTestConfig
// tolerance for malformed/absent flags.
func BoolEnv(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
