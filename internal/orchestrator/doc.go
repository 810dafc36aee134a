// Package orchestrator drives the lifecycle of the sync workers.
//
// An Orchestrator is built from a normalized model.Config and a worker
// Factory. Workers are created lazily on the first lifecycle call, either
// for one named sync point or for all of them, and the created set never
// changes afterwards. Every lifecycle operation (Clean, Sync,
// StartContainer, Run, Stop, WatchStart) is a sequential fan-out over
// the created workers in configuration order.
//
// JoinAll is the foreground wait used by "container-sync start". It waits
// on each worker's background watch thread and watch process, turns a
// cancelled context into a graceful shutdown, and reports worker failures
// as values instead of crashing the process.
package orchestrator
