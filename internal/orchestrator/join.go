package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// JoinStatus describes how JoinAll returned.
type JoinStatus int

const (
	// JoinOK means every background handle finished without error.
	JoinOK JoinStatus = iota

	// JoinInterrupted means the context was cancelled (typically by
	// SIGINT) and all workers were stopped.
	JoinInterrupted

	// JoinFailed means a background handle failed. The failure has been
	// logged and is carried in JoinResult.Err.
	JoinFailed
)

// String returns the string representation of JoinStatus.
func (s JoinStatus) String() string {
	switch s {
	case JoinOK:
		return "ok"
	case JoinInterrupted:
		return "interrupted"
	case JoinFailed:
		return "failed"
	default:
		return fmt.Sprintf("JoinStatus(%d)", int(s))
	}
}

// JoinResult is returned by JoinAll.
type JoinResult struct {
	Status JoinStatus

	// Err is set only for JoinFailed and is always a
	// *model.WorkerRuntimeError.
	Err error
}

// interruptGrace is how long JoinAll waits for a pending interrupt after
// a handle fails. A ^C may reach a child process before the context is
// cancelled.
var interruptGrace = 100 * time.Millisecond

// JoinAll blocks until every worker's watch thread and then its watch
// process have finished, visiting workers in creation order.
//
// Cancelling ctx is treated as a user interrupt: every worker is stopped
// exactly once and JoinAll returns JoinInterrupted. The stop calls use a
// context detached from ctx so they are not cut short by the very
// cancellation that triggered them. A handle failure that coincides with
// the cancellation is part of the interrupt, not a worker failure.
//
// Any other failure in a background handle, including a panic, is logged
// and returned as JoinFailed. JoinAll itself never panics because of a
// worker.
func (o *Orchestrator) JoinAll(ctx context.Context) JoinResult {
	workers := o.Workers()

	done := make(chan error, 1)
	go func() {
		done <- waitAll(workers)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return JoinResult{Status: JoinOK}
		}
		if !cancelledWithin(ctx, interruptGrace) {
			return o.joinResult(err)
		}
	case <-ctx.Done():
		// The handles may have finished cleanly at the same moment.
		select {
		case err = <-done:
			if err == nil {
				return JoinResult{Status: JoinOK}
			}
		default:
		}
	}

	o.log.Info("Shutting down...")
	if err != nil {
		o.log.Debug("Watch handle exited during shutdown", zap.Error(err))
	}
	stopCtx := context.WithoutCancel(ctx)
	for _, w := range workers {
		if err := w.Stop(stopCtx); err != nil {
			o.log.Warn("Failed to stop worker", zap.String("sync", w.Name()), zap.Error(err))
		}
	}
	return JoinResult{Status: JoinInterrupted}
}

// cancelledWithin reports whether ctx is cancelled now or within d.
func cancelledWithin(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

func (o *Orchestrator) joinResult(err error) JoinResult {
	if err == nil {
		return JoinResult{Status: JoinOK}
	}

	fields := []zap.Field{zap.Error(err)}
	var rtErr *model.WorkerRuntimeError
	if errors.As(err, &rtErr) {
		fields = append(fields, zap.String("sync", rtErr.Worker))
	}
	o.log.Error("Worker failed", fields...)
	return JoinResult{Status: JoinFailed, Err: err}
}

// waitAll waits on each worker's thread and then its process. The first
// failure ends the wait.
func waitAll(workers []Worker) (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			err = &model.WorkerRuntimeError{Worker: current, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for _, w := range workers {
		current = w.Name()
		if th := w.WatchThread(); th != nil {
			if err := th.Wait(); err != nil {
				return &model.WorkerRuntimeError{Worker: current, Err: err}
			}
		}
		if p := w.WatchProcess(); p != nil {
			if err := p.Wait(); err != nil {
				return &model.WorkerRuntimeError{Worker: current, Err: err}
			}
		}
	}
	return nil
}
