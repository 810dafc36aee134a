package background

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
)

// ErrNotStarted is returned by StartProcess for a command without a path.
var ErrNotStarted = errors.New("process not started")

// Process is a forked external command. The command is reaped by an
// internal goroutine so that Wait can be called from several places and
// Kill never races with a concurrent Wait.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	// err is written once before done is closed.
	err error

	// killed is set when Kill was requested, so that the resulting
	// "signal: killed" exit is not reported as a failure.
	killed atomic.Bool
}

// StartProcess starts cmd and returns a handle to it.
func StartProcess(cmd *exec.Cmd) (*Process, error) {
	if cmd == nil || cmd.Path == "" {
		return nil, ErrNotStarted
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = cmd.Wait()
	}()
	return p, nil
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits. A process stopped through Kill
// reports no error.
func (p *Process) Wait() error {
	<-p.done
	if p.killed.Load() {
		return nil
	}
	return p.err
}

// Kill terminates the process without waiting for it to exit. Killing a
// process that already exited is a no-op.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.killed.Store(true)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process %d: %w", p.Pid(), err)
	}
	return nil
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}
