// Package discovery finds molecule scenarios in a project tree and expands
// them into runs.
//
// A scenario is any directory S below a directory named molecule that holds
// S/molecule.yml. The scenario executes in the directory containing the
// molecule directory; when that directory sits in roles/ it also names the
// role. Optional files next to molecule.yml:
//
//   - moltest.tags: comma or whitespace separated tags
//   - moltest.params.yml, moltest.params.yaml or moltest.params.json: a list
//     of {id, vars} entries, each becoming its own run role:scenario[id]
//
// Problems with one scenario are collected in Result.Errors and never stop
// the walk. Discovery fails only when the root is unusable or yields no run.
package discovery
