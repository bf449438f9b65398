// Package preflight checks that the host can take an editor install:
// free space in the cache, a reachable download service, writable
// directories and enough inotify watches for the file watcher.
package preflight
