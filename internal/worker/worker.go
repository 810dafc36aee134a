package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shinji-kodama/container-sync/internal/background"
	"github.com/shinji-kodama/container-sync/internal/docker"
	"github.com/shinji-kodama/container-sync/internal/model"
	"github.com/shinji-kodama/container-sync/internal/orchestrator"
	"github.com/shinji-kodama/container-sync/internal/port"
)

// defaultDebounce is how long the rsync watcher waits for the file system
// to settle before syncing.
const defaultDebounce = 300 * time.Millisecond

// Runtime is the container runtime a worker drives. *docker.Client
// implements it.
type Runtime interface {
	ContainerExists(ctx context.Context, name string) (bool, error)
	EnsureSyncContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	PublishedPort(ctx context.Context, name string, containerPort int) (int, error)
	StopSyncContainer(ctx context.Context, name string) error
	RemoveSyncContainer(ctx context.Context, name string) error
	RemoveVolume(ctx context.Context, name string) error
}

// CommandFunc builds the command for an external tool. It matches
// exec.CommandContext so tests can substitute harmless commands.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type options struct {
	log      *zap.Logger
	registry *port.Registry
	command  CommandFunc
	debounce time.Duration
	output   io.Writer
	now      func() time.Time
}

// Option configures the workers created by NewFactory.
type Option func(*options)

// WithLogger sets the logger workers report through.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPortRegistry shares a port registry between workers. Without it
// each factory gets its own registry backed by port.NewScanner.
func WithPortRegistry(r *port.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithCommand replaces how external tools are started.
func WithCommand(fn CommandFunc) Option {
	return func(o *options) { o.command = fn }
}

// WithDebounce sets the quiet period of the rsync watcher.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithOutput sets where transfer tool output goes in verbose mode.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// NewFactory returns an orchestrator.Factory creating SyncWorkers that
// share rt and the given options.
func NewFactory(rt Runtime, opts ...Option) orchestrator.Factory {
	o := options{
		log:      zap.NewNop(),
		command:  exec.CommandContext,
		debounce: defaultDebounce,
		output:   os.Stdout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = port.NewRegistry(port.NewScanner())
	}

	return func(name string, cfg model.SyncPointConfig) (orchestrator.Worker, error) {
		w, err := newWorker(name, cfg, rt, o)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// SyncWorker synchronizes one sync point into its container.
type SyncWorker struct {
	name     string
	cfg      model.SyncPointConfig
	strategy strategy
	rt       Runtime
	opts     options
	log      *zap.Logger

	// syncMu serializes transfers; the rsync watcher may trigger a sync
	// while a manual one is running.
	syncMu sync.Mutex

	mu       sync.Mutex
	hostPort int
	thread   *background.Task
	process  *background.Process
}

// newWorker creates the worker for one sync point. Unknown strategies
// are rejected here, so a bad strategy fails before any container is
// touched.
func newWorker(name string, cfg model.SyncPointConfig, rt Runtime, opts options) (*SyncWorker, error) {
	st, err := strategyFor(cfg.EffectiveStrategy())
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidConfig, name, err)
	}

	return &SyncWorker{
		name:     name,
		cfg:      cfg,
		strategy: st,
		rt:       rt,
		opts:     opts,
		log: opts.log.With(
			zap.String("sync", name),
			zap.String("strategy", cfg.EffectiveStrategy().String()),
		),
	}, nil
}

// Name returns the sync point name.
func (w *SyncWorker) Name() string {
	return w.name
}

// StartContainer creates (or reuses) and starts the sync container and
// records the host port it publishes.
func (w *SyncWorker) StartContainer(ctx context.Context) error {
	exists, err := w.rt.ContainerExists(ctx, w.name)
	if err != nil {
		return err
	}

	hostPort := w.cfg.SyncHostPort
	if !exists {
		// A new container binds its port on start; make sure nobody else
		// holds it. An existing container already owns its binding.
		if hostPort != 0 {
			if err := w.opts.registry.Reserve(w.name, hostPort); err != nil {
				return err
			}
		} else {
			hostPort, err = w.opts.registry.Allocate(w.name)
			if err != nil {
				return err
			}
		}
	}

	spec := w.containerSpec(hostPort)
	w.log.Debug("Ensuring sync container", zap.String("image", spec.Image), zap.Int("hostPort", hostPort))
	if _, err := w.rt.EnsureSyncContainer(ctx, spec); err != nil {
		return err
	}

	published, err := w.rt.PublishedPort(ctx, w.name, w.strategy.containerPort())
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.hostPort = published
	w.mu.Unlock()

	w.log.Info("Sync container running", zap.Int("port", published))
	return nil
}

func (w *SyncWorker) containerSpec(hostPort int) docker.ContainerSpec {
	img := w.cfg.Image
	if img == "" {
		img = w.strategy.defaultImage()
	}

	env := []string{"VOLUME=" + w.cfg.Dest}
	if w.cfg.SyncUserID != "" {
		env = append(env, "OWNER_UID="+w.cfg.SyncUserID)
	}

	return docker.ContainerSpec{
		Name:          w.name,
		Image:         img,
		Target:        w.cfg.Dest,
		ContainerPort: w.strategy.containerPort(),
		HostPort:      hostPort,
		Env:           env,
		Labels:        docker.BuildLabels(w.cfg, w.opts.now()),
	}
}

// resolvePort returns the published host port, asking Docker when this process
// did not start the container itself (e.g. a standalone "sync").
func (w *SyncWorker) resolvePort(ctx context.Context) (int, error) {
	w.mu.Lock()
	p := w.hostPort
	w.mu.Unlock()
	if p != 0 {
		return p, nil
	}

	p, err := w.rt.PublishedPort(ctx, w.name, w.strategy.containerPort())
	if err != nil {
		return 0, fmt.Errorf("sync container for %s is not running (run start first): %w", w.name, err)
	}

	w.mu.Lock()
	w.hostPort = p
	w.mu.Unlock()
	return p, nil
}

// Sync runs one transfer from the source directory into the container.
func (w *SyncWorker) Sync(ctx context.Context) error {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	p, err := w.resolvePort(ctx)
	if err != nil {
		return err
	}

	bin, args := w.strategy.syncCommand(w.cfg, p)
	started := w.opts.now()
	if err := w.runTool(ctx, bin, args); err != nil {
		return model.WrapCLIError(model.ExitWorkerFailed, fmt.Sprintf("%s sync failed", w.name), err)
	}

	w.log.Info("Synced", zap.Duration("took", w.opts.now().Sub(started)))
	return nil
}

// runTool runs an external transfer tool to completion. In verbose mode
// its output is streamed; otherwise it is captured and only reported on
// failure.
func (w *SyncWorker) runTool(ctx context.Context, bin string, args []string) error {
	cmd := w.opts.command(ctx, bin, args...)
	w.log.Debug("Running", zap.String("command", bin), zap.Strings("args", args))

	if w.cfg.Verbose {
		cmd.Stdout = w.opts.output
		cmd.Stderr = w.opts.output
		return cmd.Run()
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Run starts the container and performs the initial sync.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.StartContainer(ctx); err != nil {
		return err
	}
	return w.Sync(ctx)
}

// Watch starts the strategy's background watcher. Calling Watch while a
// watcher is alive is a no-op.
func (w *SyncWorker) Watch(ctx context.Context) error {
	w.mu.Lock()
	alive := (w.thread != nil && w.thread.Alive()) || (w.process != nil && !isDone(w.process.Done()))
	w.mu.Unlock()
	if alive {
		return nil
	}

	w.log.Debug("Starting watcher")
	return w.strategy.watch(ctx, w)
}

// Stop kills the background watcher and stops the container. Every step
// runs even if an earlier one fails.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	thread, process := w.thread, w.process
	w.mu.Unlock()

	var errs error
	if thread != nil {
		thread.Kill()
	}
	if process != nil {
		errs = multierr.Append(errs, process.Kill())
	}
	errs = multierr.Append(errs, w.rt.StopSyncContainer(ctx, w.name))

	if errs == nil {
		w.log.Info("Stopped")
	}
	return errs
}

// Clean stops the worker and removes its container and volume.
func (w *SyncWorker) Clean(ctx context.Context) error {
	errs := w.Stop(ctx)
	errs = multierr.Append(errs, w.rt.RemoveSyncContainer(ctx, w.name))
	errs = multierr.Append(errs, w.rt.RemoveVolume(ctx, w.name))
	w.opts.registry.Release(w.name)

	w.mu.Lock()
	w.hostPort = 0
	w.mu.Unlock()

	if errs == nil {
		w.log.Info("Cleaned")
	}
	return errs
}

// WatchThread returns the rsync watch task, or nil.
func (w *SyncWorker) WatchThread() orchestrator.Thread {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.thread == nil {
		return nil
	}
	return w.thread
}

// WatchProcess returns the forked unison watcher, or nil.
func (w *SyncWorker) WatchProcess() orchestrator.Process {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.process == nil {
		return nil
	}
	return w.process
}

func (w *SyncWorker) setThread(t *background.Task) {
	w.mu.Lock()
	w.thread = t
	w.mu.Unlock()
}

func (w *SyncWorker) setProcess(p *background.Process) {
	w.mu.Lock()
	w.process = p
	w.mu.Unlock()
}

func isDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
