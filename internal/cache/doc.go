// Package cache persists the last outcome of every RunID in
// .moltest_cache.json so that failed runs can be selected again with
// --rerun-failed.
//
// The file is read once before a run and rewritten once after it through an
// atomic replace. Reads never fail: a missing, corrupt or foreign file is
// treated as empty.
package cache
