package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig points at a config file or directory.
	EnvConfig = "FIRSTRUN_CONFIG"
	// EnvLogLevel overrides service.log_level.
	EnvLogLevel = "FIRSTRUN_LOG_LEVEL"
	// EnvApps overrides the apps list.
	EnvApps = "FIRSTRUN_APPS"
	// EnvSerial overrides device.serial.
	EnvSerial = "FIRSTRUN_SERIAL"

	configFilename = "config.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file, or from config.yaml inside
// a directory. Unset fields keep their defaults.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, configFilename)
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but %s not found: %s", configFilename, absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourcePath = absPath
	if cfg.Adapters == nil {
		cfg.Adapters = make(map[string]AdapterConf)
	}

	ApplyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies FIRSTRUN_* overrides on top of cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Service.LogLevel = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvApps); ok {
		cfg.Apps = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSerial)); v != "" {
		cfg.Device.Serial = v
	}
}

// Discover finds a config by checking standard locations.
// Priority order: $FIRSTRUN_CONFIG, ~/.config/firstrun, ./config.yaml.
// Returns "" with no error when nothing is found; callers fall back to Defaults.
func Discover() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points at missing path %s", EnvConfig, p)
		}
		return p, nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "firstrun")
		if _, err := os.Stat(filepath.Join(userConfigDir, configFilename)); err == nil {
			return userConfigDir, nil
		}
	}

	if _, err := os.Stat(configFilename); err == nil {
		return configFilename, nil
	}
	return "", nil
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Device.CommandTimeout < 0 {
		return fmt.Errorf("device.command_timeout must not be negative")
	}
	if cfg.Device.Settle < 0 {
		return fmt.Errorf("device.settle must not be negative")
	}

	for name, ac := range cfg.Adapters {
		for i, step := range ac.Steps {
			if err := validateStep(step); err != nil {
				return fmt.Errorf("adapters.%s.steps[%d]: %w", name, i, err)
			}
		}
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api is enabled")
		}
		if matches := envVarPattern.FindStringSubmatch(cfg.API.APIKey); len(matches) > 1 {
			return fmt.Errorf("api.api_key: environment variable ${%s} is not set", matches[1])
		}
		if cfg.API.APIKey == "" {
			return fmt.Errorf("api.api_key is required when api is enabled")
		}
	}
	return nil
}

func validateStep(s Step) error {
	set := 0
	if s.Key != "" {
		set++
	}
	if len(s.Tap) > 0 {
		set++
		if len(s.Tap) != 2 {
			return fmt.Errorf("tap needs exactly two coordinates, got %d", len(s.Tap))
		}
		if s.Tap[0] < 0 || s.Tap[1] < 0 {
			return fmt.Errorf("tap coordinates must not be negative")
		}
	}
	if s.Wait != 0 {
		set++
		if s.Wait < 0 {
			return fmt.Errorf("wait must not be negative")
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of key, tap or wait must be set")
	}
	return nil
}
