// Package history keeps an optional SQLite log of past runs.
//
// Every orchestrated run is stored under a random uuid together with its
// ordered outcomes. The database uses WAL mode and a single connection; the
// schema is embedded and applied idempotently on Open. History is an
// observer of runs: callers treat write failures as warnings.
package history
