package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Orchestrator owns a normalized Config and the workers created from it.
//
// Lifecycle calls are synchronous fan-outs: each worker's call returns
// before the next worker is called. The worker list is written only by
// InitWorkers, once, so no locking is needed as long as the orchestrator
// is driven from a single goroutine.
type Orchestrator struct {
	cfg     *model.Config
	factory Factory
	log     *zap.Logger

	workers []Worker
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for lifecycle and shutdown messages.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// New returns an orchestrator for cfg. No workers exist until the first
// lifecycle call (or an explicit InitWorkers).
func New(cfg *model.Config, factory Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		factory: factory,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GlobalOptions returns the normalized global options.
func (o *Orchestrator) GlobalOptions() model.GlobalOptions {
	return o.cfg.Global
}

// SyncPoints returns the normalized sync points in configuration order.
// The slice is a copy.
func (o *Orchestrator) SyncPoints() []model.SyncPointConfig {
	out := make([]model.SyncPointConfig, len(o.cfg.Syncs))
	copy(out, o.cfg.Syncs)
	return out
}

// Workers returns the workers created so far, in creation order.
func (o *Orchestrator) Workers() []Worker {
	out := make([]Worker, len(o.workers))
	copy(out, o.workers)
	return out
}

// InitWorkers creates the workers. It is a no-op once workers exist, so
// a later call with a different name does not change the created set.
//
// With a name, exactly one worker is created, or *model.UnknownSyncNameError
// is returned when the name is not configured. With an empty name, one
// worker per sync point is created in configuration order. If the factory
// fails, no workers are kept.
func (o *Orchestrator) InitWorkers(name string) error {
	if len(o.workers) != 0 {
		return nil
	}

	var points []model.SyncPointConfig
	if name == "" {
		points = o.cfg.Syncs
	} else {
		sp, ok := o.cfg.Lookup(name)
		if !ok {
			return &model.UnknownSyncNameError{Name: name}
		}
		points = []model.SyncPointConfig{sp}
	}

	workers := make([]Worker, 0, len(points))
	for _, sp := range points {
		w, err := o.factory(sp.Name, sp)
		if err != nil {
			return fmt.Errorf("failed to create worker for %s: %w", sp.Name, err)
		}
		workers = append(workers, w)
	}

	o.workers = workers
	o.log.Debug("Workers created", zap.Strings("syncs", workerNames(workers)))
	return nil
}

// Clean initializes the workers and cleans every one of them.
func (o *Orchestrator) Clean(ctx context.Context, name string) error {
	return o.dispatch(ctx, name, "clean", Worker.Clean)
}

// Sync initializes the workers and runs a one-off sync on each.
func (o *Orchestrator) Sync(ctx context.Context, name string) error {
	return o.dispatch(ctx, name, "sync", Worker.Sync)
}

// StartContainer initializes the workers and starts each sync container.
func (o *Orchestrator) StartContainer(ctx context.Context, name string) error {
	return o.dispatch(ctx, name, "start container", Worker.StartContainer)
}

// Run initializes the workers and runs each one (container start plus
// initial sync).
func (o *Orchestrator) Run(ctx context.Context, name string) error {
	return o.dispatch(ctx, name, "run", Worker.Run)
}

// dispatch initializes the workers for name and calls op on every held
// worker in creation order. The first error stops the fan-out.
func (o *Orchestrator) dispatch(ctx context.Context, name, action string, op func(Worker, context.Context) error) error {
	if err := o.InitWorkers(name); err != nil {
		return err
	}

	for _, w := range o.workers {
		o.log.Debug("Dispatching", zap.String("action", action), zap.String("sync", w.Name()))
		if err := op(w, ctx); err != nil {
			return fmt.Errorf("%s %s: %w", action, w.Name(), err)
		}
	}
	return nil
}

// Stop stops every worker and then kills its watch thread, if any. All
// workers are stopped even if some fail; the failures are combined.
// Stop does not wait for background work to finish.
func (o *Orchestrator) Stop(ctx context.Context) error {
	var errs error
	for _, w := range o.workers {
		if err := w.Stop(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop %s: %w", w.Name(), err))
		}
		if th := w.WatchThread(); th != nil {
			th.Kill()
		}
	}
	return errs
}

// WatchStart starts the watch loop of every worker.
func (o *Orchestrator) WatchStart(ctx context.Context) error {
	for _, w := range o.workers {
		o.log.Debug("Starting watcher", zap.String("sync", w.Name()))
		if err := w.Watch(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", w.Name(), err)
		}
	}
	return nil
}

// WatchStop kills the watch thread of every worker.
func (o *Orchestrator) WatchStop() {
	for _, w := range o.workers {
		if th := w.WatchThread(); th != nil {
			th.Kill()
		}
	}
}

func workerNames(workers []Worker) []string {
	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name())
	}
	return names
}
