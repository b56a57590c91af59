// Package hooks lets external code observe the lifecycle of a run.
//
// A hook module implements any subset of four callbacks; the missing ones
// are no-ops:
//
//	before_run(context)                -> BeforeRunHook
//	before_scenario(scenario_id)       -> BeforeScenarioHook
//	after_scenario(scenario_id, status) -> AfterScenarioHook
//	after_run(outcomes)                -> AfterRunHook
//
// Modules are created from the plugins list of the configuration through a
// Registry: a plugin with a command becomes an ExecHook, any other plugin is
// looked up by name among the registered factories. The Dispatcher calls
// modules in registration order and isolates every failure, so a broken
// hook never changes the result of a run.
//
// Under parallel execution before_scenario and after_scenario run on the
// worker of their run and may be called concurrently for different runs.
package hooks
