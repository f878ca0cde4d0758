// Package telemetry sends anonymous usage events to PostHog when enabled.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ConfigFileName is the name of the telemetry state file under the data directory.
const ConfigFileName = "telemetry.json"

// Config holds the telemetry state.
type Config struct {
	// Enabled indicates whether telemetry is currently enabled.
	Enabled bool `json:"enabled"`

	// AnonymousID is a random UUID generated once per data directory.
	// Not tied to any personally identifiable information.
	AnonymousID string `json:"anonymous_id"`
}

// LoadConfig reads <dataDir>/telemetry.json, creating it with a fresh
// anonymous id when missing. enabled always comes from application config.
func LoadConfig(dataDir string, enabled bool) (*Config, error) {
	path := filepath.Join(dataDir, ConfigFileName)
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse telemetry file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read telemetry file: %w", err)
	}

	cfg.Enabled = enabled
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
		if err := cfg.save(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	// Owner read/write only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write telemetry file: %w", err)
	}
	return nil
}

// IsEnabled returns true if telemetry is currently enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}
