// Package worker implements the per-sync-point workers driven by the
// orchestrator.
//
// A SyncWorker owns one sync container and its volume. The transfer
// itself is delegated to the external rsync or unison binary:
//
//   - rsync: the container runs an rsync daemon on a declared host port.
//     Watching happens in-process with fsnotify; changes are debounced
//     and each quiet period triggers one rsync run.
//   - unison: the container runs a unison socket server. Watching is a
//     forked "unison -repeat watch" process.
//
// Workers are created through NewFactory, which returns an
// orchestrator.Factory.
package worker
