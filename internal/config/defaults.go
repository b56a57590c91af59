package config

import "time"

const (
	// DefaultCacheFile is the result cache file name in the project root.
	DefaultCacheFile = ".moltest_cache.json"

	// DefaultHistoryFile is the run history database in the project root.
	DefaultHistoryFile = ".moltest_history.db"

	// DefaultHookTimeout bounds exec hooks that do not set their own timeout.
	DefaultHookTimeout = 30 * time.Second

	// MaxParallel is the upper bound accepted for the concurrency limit.
	MaxParallel = 50
)

// DefaultIgnorePatterns are never descended into during discovery.
var DefaultIgnorePatterns = []string{".venv", "venv", "env", ".git", ".tox", "node_modules"}

// DefaultCommand runs the molecule test sequence for one scenario.
var DefaultCommand = []string{"molecule", "test", "-s", "{scenario}"}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() MoltestConfig {
	return MoltestConfig{
		Command:     append([]string(nil), DefaultCommand...),
		Parallel:    1,
		CacheFile:   DefaultCacheFile,
		HookTimeout: DefaultHookTimeout,
		History: HistoryConfig{
			Path: DefaultHistoryFile,
		},
	}
}

// IgnorePatterns returns the default patterns followed by the configured ones.
func (c MoltestConfig) IgnorePatterns() []string {
	patterns := append([]string(nil), DefaultIgnorePatterns...)
	for _, p := range c.Ignore {
		if p == "" {
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}
