// Package orchestrator wires the moltest pipeline together.
//
// One call to Orchestrator.Run performs a complete test session:
//
//  1. Discovery of scenarios below the project root
//  2. Selection by explicit ids, keyword expression and, with rerun-failed,
//     the previously failed RunIDs from the result cache
//  3. Tag based skipping
//  4. The before_run hook
//  5. Scheduling, with before_scenario and after_scenario around each run
//  6. Persisting outcomes to the result cache
//  7. Rendering every configured report
//  8. Recording the session in the run history, when enabled
//  9. The after_run hook
//
// Selection problems (a malformed keyword expression, an unknown explicit
// id, an unusable project root) abort the session before anything runs.
// Every other problem is logged, counted as a warning and surfaced in the
// summary while the session continues.
//
// Watch repeats Run whenever files below the discovered scenarios change.
package orchestrator
