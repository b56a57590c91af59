// Package logging provides the structured logging used across moltest.
//
// It is a thin layer over log/slog. Every record carries a subsystem
// attribute naming the component that produced it, and Error records carry
// an additional error attribute.
//
// # Usage Examples
//
//	import "github.com/eddiedunn/moltest/pkg/logging"
//
//	logging.InitForCLI(logging.LevelFromVerbosity(verbosity), os.Stderr)
//
//	logging.Info("Discovery", "Found %d scenarios", n)
//	logging.Warn("Cache", "Cache file %s is corrupt, starting empty", path)
//	logging.Error("Runner", err, "Failed to launch %s", runID)
//
// # Subsystems
//
//   - **Config**: configuration loading and validation
//   - **Discovery**: scenario discovery and parameter expansion
//   - **Cache**: result cache reads and writes
//   - **Hooks**: plugin loading and lifecycle callbacks
//   - **Scheduler**: admission, fail-fast and max-failure decisions
//   - **Runner**: external process launch and output capture
//   - **Reporter**: console and report file output
//   - **History**: run history storage
//   - **Watch**: file watching re-run loop
//
// Warnings are the channel for every non-fatal problem (corrupt cache,
// failing hooks, malformed parameter files), so the default level for the
// command line is WARN.
//
// The package is safe for concurrent use.
package logging
