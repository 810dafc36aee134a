// Package background provides the handles workers use for long-running
// work: Task for an in-process goroutine and Process for a forked
// external command. Both can be waited on by any number of callers and
// stopped without waiting.
package background

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Task runs a function on its own goroutine. The function receives a
// context that is cancelled by Kill.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	// err is written once before done is closed.
	err error
}

// Go starts fn on a new goroutine. A panic inside fn is recovered and
// reported by Wait as an error, so a faulty watcher cannot take the
// whole process down.
func Go(parent context.Context, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		t.err = fn(ctx)
	}()

	return t
}

// Wait blocks until the task function returns and reports its error.
// A function that returns ctx.Err() after Kill is treated as a clean exit.
func (t *Task) Wait() error {
	<-t.done
	if errors.Is(t.err, context.Canceled) {
		return nil
	}
	return t.err
}

// Kill cancels the task's context. It does not wait for the function to
// return; call Wait for that. Kill is safe to call more than once.
func (t *Task) Kill() {
	t.cancel()
}

// Done is closed once the task function has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Alive reports whether the task function is still running.
func (t *Task) Alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
