// Package api holds the domain types shared by every moltest package.
//
// The types here carry no behavior beyond small derived values. They exist so
// that discovery, scheduling, caching, hooks and reporting can exchange data
// without importing one another:
//
//   - **Scenario**: one discovered scenario definition (role, name, directory)
//   - **ParameterSet**: a named variable binding that expands a Scenario
//   - **Run**: the unit actually scheduled, identified by its RunID
//   - **Outcome**: the result of one Run
//   - **RunContext**: what hooks see at the start of a run
//   - **Summary**: status counts derived from a list of Outcomes
package api
