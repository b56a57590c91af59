// Package watch reports debounced filesystem changes below a set of
// directories.
//
// Directories are watched recursively with fsnotify. New directories are
// picked up as they are created. Bursts of events are folded into a single
// Change once no event arrived for the debounce interval.
package watch
