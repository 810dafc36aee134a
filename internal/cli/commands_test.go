package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/container-sync/internal/docker"
	"github.com/shinji-kodama/container-sync/internal/model"
	"github.com/shinji-kodama/container-sync/internal/port"
	"github.com/shinji-kodama/container-sync/internal/worker"
)

// fakeRuntime stands in for the Docker client.
type fakeRuntime struct {
	mu         sync.Mutex
	calls      []string
	pingErr    error
	containers []model.SyncContainer
	closed     bool
}

func (f *fakeRuntime) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRuntime) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRuntime) Ping(context.Context) error { return f.pingErr }

func (f *fakeRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRuntime) ListSyncContainers(_ context.Context, name string) ([]model.SyncContainer, error) {
	f.record("list %s", name)
	return f.containers, nil
}

func (f *fakeRuntime) ContainerExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeRuntime) EnsureSyncContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	f.record("ensure %s", spec.Name)
	return "id-" + spec.Name, nil
}

func (f *fakeRuntime) PublishedPort(_ context.Context, _ string, _ int) (int, error) {
	return 10871, nil
}

func (f *fakeRuntime) StopSyncContainer(_ context.Context, name string) error {
	f.record("stop %s", name)
	return nil
}

func (f *fakeRuntime) RemoveSyncContainer(_ context.Context, name string) error {
	f.record("remove %s", name)
	return nil
}

func (f *fakeRuntime) RemoveVolume(_ context.Context, name string) error {
	f.record("remove-volume %s", name)
	return nil
}

type allFree struct{}

func (allFree) IsPortAvailable(int) bool { return true }

// lockedBuffer lets a test read command output while the command runs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// installFakes swaps Docker and the transfer tools for test doubles.
func installFakes(t *testing.T, rt *fakeRuntime, script string) *[]string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	var (
		mu   sync.Mutex
		runs []string
	)
	prevRuntime, prevOpts := newRuntime, workerOptions
	newRuntime = func() (containerRuntime, error) { return rt, nil }
	workerOptions = []worker.Option{
		worker.WithPortRegistry(port.NewRegistry(allFree{})),
		worker.WithDebounce(20 * time.Millisecond),
		worker.WithCommand(func(ctx context.Context, name string, args ...string) *exec.Cmd {
			mu.Lock()
			runs = append(runs, name+" "+strings.Join(args, " "))
			mu.Unlock()
			return exec.CommandContext(ctx, "sh", "-c", script)
		}),
	}
	t.Cleanup(func() { newRuntime, workerOptions = prevRuntime, prevOpts })
	return &runs
}

func testConfig(t *testing.T) string {
	t.Helper()
	web, api := t.TempDir(), t.TempDir()
	return fmt.Sprintf(`
syncs:
  web-sync:
    src: '%s/'
    dest: '/var/www'
    sync_strategy: 'rsync'
    sync_host_port: 10871
  api-sync:
    src: '%s'
    dest: '/srv/api'
    sync_strategy: 'rsync'
    sync_host_port: 10872
`, web, api)
}

// execute runs the root command with args and returns stdout, stderr and
// the error Execute would map to an exit code.
func execute(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestListCommand(t *testing.T) {
	out, _, err := execute(context.Background(), "list", "--config-string", testConfig(t))

	require.NoError(t, err)
	assert.Contains(t, out, "web-sync")
	assert.Contains(t, out, "api-sync")
}

func TestListCommand_ConfigNotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := execute(context.Background(), "list")

	require.Error(t, err)
	assert.Equal(t, model.ExitConfigNotFound, model.ExitCodeOf(err))
	assert.ErrorIs(t, err, model.ErrConfigNotFound)
}

func TestListCommand_InvalidConfig(t *testing.T) {
	_, _, err := execute(context.Background(), "list", "--config-string", "syncs:\n  web-sync:\n    dest: /var/www\n")

	require.Error(t, err)
	assert.Equal(t, model.ExitInvalidConfig, model.ExitCodeOf(err))
	var missing *model.MissingFieldError
	assert.ErrorAs(t, err, &missing)
}

func TestConfigCommand(t *testing.T) {
	cfg := testConfig(t)

	out, _, err := execute(context.Background(), "config", "--config-string", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "syncs:")
	assert.Contains(t, out, "sync_host_port: 10871")

	// The rendered document loads back to the same output.
	again, _, err := execute(context.Background(), "config", "--config-string", out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestSyncCommand(t *testing.T) {
	rt := &fakeRuntime{}
	runs := installFakes(t, rt, "exit 0")

	out, _, err := execute(context.Background(), "sync", "--config-string", testConfig(t), "--name", "api-sync")

	require.NoError(t, err)
	assert.Equal(t, "Synced api-sync\n", out)
	require.Len(t, *runs, 1)
	assert.Contains(t, (*runs)[0], "rsync://127.0.0.1:10871/volume/")
	assert.True(t, rt.closed)
}

func TestSyncCommand_UnknownName(t *testing.T) {
	rt := &fakeRuntime{}
	installFakes(t, rt, "exit 0")

	_, _, err := execute(context.Background(), "sync", "--config-string", testConfig(t), "--name", "missing")

	require.Error(t, err)
	assert.Equal(t, model.ExitSyncNotFound, model.ExitCodeOf(err))
	var unknown *model.UnknownSyncNameError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
	assert.Empty(t, rt.snapshot(), "docker is not touched for unknown names")
}

func TestSyncCommand_WorkerFailure(t *testing.T) {
	rt := &fakeRuntime{}
	installFakes(t, rt, "echo 'connection refused' >&2; exit 5")

	_, _, err := execute(context.Background(), "sync", "--config-string", testConfig(t))

	require.Error(t, err)
	assert.Equal(t, model.ExitWorkerFailed, model.ExitCodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLifecycle_DockerNotRunning(t *testing.T) {
	rt := &fakeRuntime{pingErr: model.NewCLIError(model.ExitDockerNotRunning, "Docker is not running")}
	installFakes(t, rt, "exit 0")

	_, _, err := execute(context.Background(), "stop", "--config-string", testConfig(t))

	require.Error(t, err)
	assert.Equal(t, model.ExitDockerNotRunning, model.ExitCodeOf(err))
}

func TestStopAndCleanCommands(t *testing.T) {
	rt := &fakeRuntime{}
	installFakes(t, rt, "exit 0")
	cfg := testConfig(t)

	out, _, err := execute(context.Background(), "stop", "--config-string", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Stopped web-sync, api-sync\n", out)
	assert.Equal(t, []string{"stop web-sync", "stop api-sync"}, rt.snapshot())

	rt.calls = nil
	out, _, err = execute(context.Background(), "clean", "--config-string", cfg, "--name", "web-sync", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": "cleaned", "syncs": ["web-sync"]}`, out)
	assert.Equal(t, []string{"stop web-sync", "remove web-sync", "remove-volume web-sync"}, rt.snapshot())
}

func TestStartCommand_NoWatch(t *testing.T) {
	rt := &fakeRuntime{}
	runs := installFakes(t, rt, "exit 0")

	out, _, err := execute(context.Background(), "start", "--config-string", testConfig(t), "--no-watch")

	require.NoError(t, err)
	assert.Equal(t, "Started web-sync, api-sync\n", out)
	assert.Equal(t, []string{"ensure web-sync", "ensure api-sync"}, rt.snapshot())
	assert.Len(t, *runs, 2)
}

// TestStartCommand_Interrupted verifies that cancelling the command while
// it watches stops every worker and ends with success.
func TestStartCommand_Interrupted(t *testing.T) {
	rt := &fakeRuntime{}
	installFakes(t, rt, "exit 0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout lockedBuffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&lockedBuffer{})
	root.SetArgs([]string{"start", "--config-string", testConfig(t)})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Watching web-sync, api-sync")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return after interrupt")
	}
	assert.Contains(t, rt.snapshot(), "stop web-sync")
	assert.Contains(t, rt.snapshot(), "stop api-sync")
}

func TestStatusCommand(t *testing.T) {
	rt := &fakeRuntime{containers: []model.SyncContainer{
		{ContainerID: "bbb", SyncName: "web-sync", Strategy: model.StrategyRsync, Status: "running"},
		{ContainerID: "aaa", SyncName: "api-sync", Strategy: model.StrategyUnison, Status: "exited"},
	}}
	installFakes(t, rt, "exit 0")

	out, _, err := execute(context.Background(), "status", "--json", "--name", "web-sync")

	require.NoError(t, err)
	assert.Equal(t, []string{"list web-sync"}, rt.snapshot())
	// Sorted by sync point name.
	assert.Less(t, strings.Index(out, "api-sync"), strings.Index(out, "web-sync"))
}

func TestStatusCommand_DockerUnavailable(t *testing.T) {
	prev := newRuntime
	newRuntime = func() (containerRuntime, error) {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker is not running", errors.New("no socket"))
	}
	t.Cleanup(func() { newRuntime = prev })

	_, _, err := execute(context.Background(), "status")

	require.Error(t, err)
	assert.Equal(t, model.ExitDockerNotRunning, model.ExitCodeOf(err))
}
