// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Monitor MonitorSection `toml:"monitor"`
	Backend BackendSection `toml:"backend"`
	MQTT    MQTTSection    `toml:"mqtt"`
}

// MonitorSection maps monitor-related settings.
type MonitorSection struct {
	User       *string `toml:"user"`
	WindowMs   *int64  `toml:"window-ms"`
	IntervalMs *int64  `toml:"interval-ms"`
	Paused     *bool   `toml:"paused"`
}

// BackendSection maps prediction backend settings.
type BackendSection struct {
	Endpoint  *string `toml:"endpoint"`
	TimeoutMs *int64  `toml:"timeout-ms"`
}

// MQTTSection maps the optional MQTT sink. The publisher is enabled when a
// broker is configured.
type MQTTSection struct {
	Broker   *string `toml:"broker"`
	Topic    *string `toml:"topic"`
	ClientID *string `toml:"client-id"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
