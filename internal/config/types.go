package config

import "time"

// MoltestConfig is the top-level configuration structure for moltest.
type MoltestConfig struct {
	// RolesPath is exported as ANSIBLE_ROLES_PATH to every external process.
	RolesPath string `yaml:"roles_path,omitempty"`

	// Plugins lists the hook modules to load, in registration order.
	Plugins []PluginConfig `yaml:"plugins,omitempty"`

	// Ignore holds extra ignore patterns merged with DefaultIgnorePatterns.
	Ignore []string `yaml:"ignore,omitempty"`

	// Command is the external command template run once per scenario.
	// The placeholders {scenario}, {id} and {role} are substituted.
	Command []string `yaml:"command,omitempty"`

	// Parallel is the default concurrency limit.
	Parallel int `yaml:"parallel,omitempty"`

	// FailFast is the default for --fail-fast.
	FailFast bool `yaml:"fail_fast,omitempty"`

	// MaxFailures is the default for --maxfail. Zero means unlimited.
	MaxFailures int `yaml:"max_failures,omitempty"`

	// CacheFile is the result cache path, relative to the project root.
	CacheFile string `yaml:"cache_file,omitempty"`

	// HookTimeout bounds every exec hook invocation without its own timeout.
	HookTimeout time.Duration `yaml:"hook_timeout,omitempty"`

	History HistoryConfig `yaml:"history,omitempty"`
}

// PluginConfig names one hook module.
//
// A plugin with a Command is run as an external program for every lifecycle
// event. A plugin without one is looked up by Name in the built-in registry.
type PluginConfig struct {
	Name    string        `yaml:"name"`
	Command []string      `yaml:"command,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// HistoryConfig controls the optional SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}
