// Package config loads client configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// Config holds the client settings.
type Config struct {
	ServerURL        string `yaml:"serverUrl"`
	ProfilePath      string `yaml:"profilePath"`
	DialTimeoutSec   int    `yaml:"dialTimeoutSec"`
	AckTimeoutSec    int    `yaml:"ackTimeoutSec"`
	ReconnectWaitSec int    `yaml:"reconnectWaitSec"`
	MaxReconnects    int    `yaml:"maxReconnects"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:        "ws://localhost:5001/ws",
		ProfilePath:      defaultProfilePath(),
		DialTimeoutSec:   10,
		AckTimeoutSec:    10,
		ReconnectWaitSec: 2,
		MaxReconnects:    -1,
	}
}

// Load reads the config file at path, falling back to defaults when path is
// empty or missing, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ServerURL = getEnv("QUIZERR_SERVER_URL", cfg.ServerURL)
	cfg.ProfilePath = getEnv("QUIZERR_PROFILE_PATH", cfg.ProfilePath)
	cfg.AckTimeoutSec = getEnvAsInt("QUIZERR_ACK_TIMEOUT_SEC", cfg.AckTimeoutSec)
	cfg.MaxReconnects = getEnvAsInt("QUIZERR_MAX_RECONNECTS", cfg.MaxReconnects)
	return cfg, nil
}

// Transport translates the settings into a transport configuration.
func (c Config) Transport() transport.Config {
	tc := transport.DefaultConfig(c.ServerURL)
	tc.DialTimeout = time.Duration(c.DialTimeoutSec) * time.Second
	tc.AckTimeout = time.Duration(c.AckTimeoutSec) * time.Second
	tc.ReconnectWait = time.Duration(c.ReconnectWaitSec) * time.Second
	tc.MaxReconnects = c.MaxReconnects
	return tc
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quizerr-profile.yaml"
	}
	return filepath.Join(dir, "quizerr", "profile.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
