/*
Package config loads application configuration from environment and an
optional config file.

PURPOSE:
  One place for everything the server needs at startup: OAuth app
  credentials, the public base URL, the credential database location, and
  the sync policy defaults exposed to operators.

SOURCES:
  Environment variables prefixed PRICESYNC_ override an optional TOML file
  (PRICESYNC_CONFIG, or ./pricesync.toml). Secrets should come from the
  environment.
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Jobber JobberConfig
	Server ServerConfig
	Sync   SyncConfig
}

// JobberConfig holds the OAuth app credentials. The client secret doubles
// as the webhook signing secret, matching the platform's webhook scheme.
type JobberConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ServerConfig holds HTTP and storage settings.
type ServerConfig struct {
	// BaseURL is this app's public URL without trailing slash; the OAuth
	// redirect URI and cookie security derive from it.
	BaseURL string `mapstructure:"base_url"`
	Port    int    `mapstructure:"port"`

	// DatabaseURL selects the credential store: sqlite:///./pricesync.db
	// or postgres://...
	DatabaseURL string `mapstructure:"database_url"`

	// SessionSecret signs session cookies.
	SessionSecret string `mapstructure:"session_secret"`
}

// SyncConfig holds run policy defaults.
type SyncConfig struct {
	FuzzyThreshold float64       `mapstructure:"fuzzy_threshold"`
	CallInterval   time.Duration `mapstructure:"call_interval"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// Load reads configuration. Env var overrides use prefix PRICESYNC_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("jobber.client_id", "")
	v.SetDefault("jobber.client_secret", "")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.database_url", "sqlite:///./pricesync.db")
	v.SetDefault("server.session_secret", "dev-secret-change-in-production")
	v.SetDefault("sync.fuzzy_threshold", 0.85)
	v.SetDefault("sync.call_interval", 500*time.Millisecond)
	v.SetDefault("sync.max_upload_bytes", int64(5<<20))

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("PRICESYNC_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pricesync")
	}

	v.SetEnvPrefix("PRICESYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional.
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	return c, nil
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.Server.BaseURL), "https")
}
