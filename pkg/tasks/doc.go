// Package tasks runs long-lived periodic tasks and holds the static table
// of applications the board can boot into.
//
// A task is pinned to its own OS thread and carries a logical core id,
// mirroring the per-core task placement of the dual-core target. Core ids
// are labels on the host; the Go scheduler still decides where threads
// run.
package tasks
