package config

import "time"

// Config represents the complete firstrun configuration.
type Config struct {
	Service  ServiceConfig          `yaml:"service"`
	State    StateConfig            `yaml:"state"`
	Device   DeviceConfig           `yaml:"device"`
	Apps     string                 `yaml:"apps"` // comma-separated, dispatch order
	Adapters map[string]AdapterConf `yaml:"adapters,omitempty"`
	API      APIConfig              `yaml:"api,omitempty"`

	// SourcePath is the absolute path the config was loaded from (empty for defaults).
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// StateConfig defines where the batch journal lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// DeviceConfig selects the device under test and how it is driven.
type DeviceConfig struct {
	Serial         string        `yaml:"serial"`
	ADBPath        string        `yaml:"adb_path"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	Settle         time.Duration `yaml:"settle"`
}

// AdapterConf overrides the built-in automation script for one catalog app.
type AdapterConf struct {
	Package  string `yaml:"package,omitempty"`
	Activity string `yaml:"activity,omitempty"`
	Steps    []Step `yaml:"steps,omitempty"`
}

// Step is one dismissal action. Exactly one of Key, Tap or Wait is set.
type Step struct {
	Key  string        `yaml:"key,omitempty"`
	Tap  []int         `yaml:"tap,omitempty"`
	Wait time.Duration `yaml:"wait,omitempty"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "firstrun",
			LogLevel: "info",
		},
		State: StateConfig{
			Path: "./data/firstrun.db",
		},
		Device: DeviceConfig{
			ADBPath:        "adb",
			CommandTimeout: 30 * time.Second,
			Settle:         time.Second,
		},
		Adapters: make(map[string]AdapterConf),
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8090",
		},
	}
}
