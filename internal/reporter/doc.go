// Package reporter renders the final outcomes of a run.
//
// Every renderer is a pure function of a Result: the ordered outcomes plus
// run metadata. The JSON and JUnit renderers are byte-for-byte deterministic
// for a given Result. The console renderer uses go-pretty for the summary
// table and adds color only when enabled; see ColorEnabled.
//
// Progress is a scheduler observer that prints one line when a run starts
// and one when it finishes.
package reporter
