package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds the admin CLI's persisted defaults, loaded from a JWCC
// (JSON with comments) file so operators can annotate their settings —
// the same format and library the ticket CLI's own config.go uses.
type Config struct {
	MapSize   int64  `json:"map_size,omitempty"`   //nolint:tagliatelle
	MaxTxnOps int    `json:"max_txn_ops,omitempty"` //nolint:tagliatelle
	NoSync    bool   `json:"no_sync,omitempty"`     //nolint:tagliatelle
	History   string `json:"history_file,omitempty"` //nolint:tagliatelle
}

// DefaultConfig returns the CLI's built-in defaults.
func DefaultConfig() Config {
	return Config{}
}

// ConfigFileName is the default config file name, searched for in the
// current directory and $HOME.
const ConfigFileName = ".idxkv.jsonc"

// LoadConfig reads configPath if non-empty, else searches the current
// directory and the user's home directory for ConfigFileName. A missing
// file is not an error; it yields DefaultConfig().
func LoadConfig(configPath string) (Config, error) {
	if configPath == "" {
		if _, err := os.Stat(ConfigFileName); err == nil {
			configPath = ConfigFileName
		} else if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
			}
		}
	}

	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath) //nolint:gosec
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWCC in %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON in %s: %w", configPath, err)
	}

	return cfg, nil
}
