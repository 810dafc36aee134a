package orchestrator

import (
	"context"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Thread is a worker's in-process background job, typically its watch
// loop. Kill requests termination without waiting; Wait blocks until the
// job has returned.
type Thread interface {
	Wait() error
	Kill()
}

// Process is a worker's forked external command.
type Process interface {
	Wait() error
	Pid() int
}

// Worker performs synchronization for exactly one sync point. The
// orchestrator only drives its lifecycle and never looks inside.
//
// WatchThread and WatchProcess return nil when the worker has no such
// background handle. Implementations must return an untyped nil in that
// case, not a nil pointer wrapped in the interface.
type Worker interface {
	// Name returns the sync point name the worker was created for.
	Name() string

	Clean(ctx context.Context) error
	Sync(ctx context.Context) error
	StartContainer(ctx context.Context) error
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
	Watch(ctx context.Context) error

	WatchThread() Thread
	WatchProcess() Process
}

// Factory creates the worker for one normalized sync point.
type Factory func(name string, cfg model.SyncPointConfig) (Worker, error)
