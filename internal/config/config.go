// Package config loads the service configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the taskcore service settings.
type Config struct {
	// DatabasePath is the SQLite database file.
	DatabasePath string `yaml:"database_path"`

	// ListenAddr is the serve command's HTTP/WebSocket bind address.
	ListenAddr string `yaml:"listen_addr"`

	// FieldDefinitionsDir optionally layers CUE field definitions over the
	// embedded defaults.
	FieldDefinitionsDir string `yaml:"field_definitions_dir"`

	// SweepSchedule is the drift sweeper's cron expression.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabasePath:  "taskcore.db",
		ListenAddr:    ":8090",
		SweepSchedule: "@every 5m",
	}
}

// Load reads a YAML config file over the defaults. Unknown keys are errors,
// catching typos early. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
