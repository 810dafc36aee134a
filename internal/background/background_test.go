package background

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTask_WaitReturnsError(t *testing.T) {
	boom := errors.New("boom")
	task := Go(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, task.Wait(), boom)
	assert.False(t, task.Alive())
}

// TestTask_KillCancelsContext verifies that Kill unblocks a task that
// waits on its context and that the cancellation is a clean exit.
func TestTask_KillCancelsContext(t *testing.T) {
	started := make(chan struct{})
	task := Go(context.Background(), func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	assert.True(t, task.Alive())

	task.Kill()
	task.Kill() // idempotent

	assert.NoError(t, task.Wait())
	assert.False(t, task.Alive())
}

// TestTask_PanicIsRecovered verifies a panic becomes an error instead of
// crashing the test binary.
func TestTask_PanicIsRecovered(t *testing.T) {
	task := Go(context.Background(), func(context.Context) error {
		panic("watcher exploded")
	})

	err := task.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watcher exploded")
}

func TestTask_MultipleWaiters(t *testing.T) {
	release := make(chan struct{})
	task := Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- task.Wait() }()
	}
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter did not return")
		}
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestProcess_ExitCode(t *testing.T) {
	requireUnix(t)

	p, err := StartProcess(exec.Command("sh", "-c", "exit 3"))
	require.NoError(t, err)
	assert.Positive(t, p.Pid())

	err = p.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

// TestProcess_KillIsCleanExit verifies that a process stopped through
// Kill reports no error from Wait.
func TestProcess_KillIsCleanExit(t *testing.T) {
	requireUnix(t)

	p, err := StartProcess(exec.Command("sleep", "30"))
	require.NoError(t, err)

	require.NoError(t, p.Kill())
	assert.NoError(t, p.Wait())

	// Killing an exited process is a no-op.
	assert.NoError(t, p.Kill())
}

func TestStartProcess_Errors(t *testing.T) {
	_, err := StartProcess(nil)
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = StartProcess(exec.Command("/definitely/not/a/binary"))
	assert.Error(t, err)
}
