// Package config holds the ambient settings an embedder supplies when
// opening a database: where the back store lives and how the engine logs.
// Everything domain-specific (schema, indices) is supplied directly as Go
// values at Open time instead, consistent with the Non-goal on a
// configuration-file schema front end.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the full set of engine-level settings.
type Config struct {
	Log   LogConfig   `json:"log"`
	Store StoreConfig `json:"store"`
}

// LogConfig configures the zap logger every package writes through.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
}

// StoreConfig selects and configures the back store.
type StoreConfig struct {
	Dir        string `json:"dir"`         // badger directory; ignored when InMemory
	InMemory   bool   `json:"in_memory"`   // use backstore/memstore instead of badger
	SyncWrites bool   `json:"sync_writes"` // fsync every badger commit
}

// DefaultConfig returns the settings a freshly embedded database starts with:
// an in-memory back store and console-formatted info logging.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			InMemory: true,
		},
	}
}

// LoadConfig reads configPath and overlays it onto DefaultConfig. An empty
// path returns the defaults unchanged.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault tries the ROWWATCH_CONFIG environment variable, then a
// couple of conventional paths, falling back to DefaultConfig.
func LoadConfigOrDefault() *Config {
	if envPath := os.Getenv("ROWWATCH_CONFIG"); envPath != "" {
		if cfg, err := LoadConfig(envPath); err == nil {
			return cfg
		}
	}
	for _, path := range []string{"config.json", "./config/config.json"} {
		if absPath, err := filepath.Abs(path); err == nil {
			if cfg, err := LoadConfig(absPath); err == nil {
				return cfg
			}
		}
	}
	return DefaultConfig()
}

func validateConfig(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level: %s", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: invalid log format: %s", cfg.Log.Format)
	}
	if !cfg.Store.InMemory && cfg.Store.Dir == "" {
		return fmt.Errorf("config: store.dir is required unless store.in_memory is set")
	}
	return nil
}
