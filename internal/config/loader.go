package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eddiedunn/moltest/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	appConfigDir   = "moltest"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns $XDG_CONFIG_HOME/moltest/config.yaml, falling
// back to ~/.config/moltest/config.yaml.
func GetDefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appConfigDir, configFileName), nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appConfigDir, configFileName), nil
}

// LoadConfig loads configuration from configFilePath. An empty path resolves
// to GetDefaultConfigPath. A missing file yields the defaults; a malformed or
// invalid file is an error.
func LoadConfig(configFilePath string) (MoltestConfig, error) {
	config := GetDefaultConfig()

	if configFilePath == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			logging.Warn("Config", "%v, using defaults", err)
			return config, nil
		}
		configFilePath = p
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config file found at %s, using defaults", configFilePath)
			return config, nil
		}
		return MoltestConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return MoltestConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if errs := Validate(config); errs.HasErrors() {
		return MoltestConfig{}, fmt.Errorf("invalid config %s: %w", configFilePath, errs)
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}
