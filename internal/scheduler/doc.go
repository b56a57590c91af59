// Package scheduler executes an ordered list of runs with bounded
// concurrency.
//
// A pass with Parallel below 2 is a plain loop. Otherwise an errgroup with
// SetLimit provides the worker bound. The scheduler holds three pieces of
// shared state behind one mutex: the failure counter, the stop flag and the
// outcome slice indexed by selection position. No lock is held while a
// process is running.
//
// Fail-fast and max-failures only stop admission. Runs already in flight
// are never interrupted by them, and every run that was never admitted is
// recorded as skipped, so Run always returns one outcome per input run in
// input order.
package scheduler
