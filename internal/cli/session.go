package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinji-kodama/container-sync/internal/docker"
	"github.com/shinji-kodama/container-sync/internal/model"
	"github.com/shinji-kodama/container-sync/internal/orchestrator"
	"github.com/shinji-kodama/container-sync/internal/worker"
)

// containerRuntime is what the commands need from Docker.
type containerRuntime interface {
	worker.Runtime
	Ping(ctx context.Context) error
	ListSyncContainers(ctx context.Context, syncName string) ([]model.SyncContainer, error)
	Close() error
}

// newRuntime connects to Docker. Tests replace it with a fake.
var newRuntime = func() (containerRuntime, error) {
	return docker.NewClient()
}

// workerOptions are appended to the options every worker factory gets.
// Tests use it to replace the transfer tools.
var workerOptions []worker.Option

// session bundles what a lifecycle command works with: the loaded
// configuration, a Docker connection and an orchestrator whose workers
// are initialized for the requested scope.
type session struct {
	cfg     *model.Config
	runtime containerRuntime
	orch    *orchestrator.Orchestrator
}

// openSession loads the configuration, connects to Docker and creates
// the workers for name ("" selects every sync point). The caller must
// close the session.
func openSession(ctx context.Context, name string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// Unknown names fail before Docker is touched.
	if name != "" {
		if _, ok := cfg.Lookup(name); !ok {
			return nil, syncNotFound(&model.UnknownSyncNameError{Name: name})
		}
	}

	rt, err := newRuntime()
	if err != nil {
		return nil, err
	}
	if err := rt.Ping(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	VerboseLog("Connected to Docker daemon")

	opts := append([]worker.Option{
		worker.WithLogger(logger),
		worker.WithOutput(errWriter),
	}, workerOptions...)
	orch := orchestrator.New(cfg, worker.NewFactory(rt, opts...), orchestrator.WithLogger(logger))

	if err := orch.InitWorkers(name); err != nil {
		_ = rt.Close()
		var unknown *model.UnknownSyncNameError
		if errors.As(err, &unknown) {
			return nil, syncNotFound(err)
		}
		return nil, err
	}
	VerboseLog("Initialized %d worker(s)", len(orch.Workers()))

	return &session{cfg: cfg, runtime: rt, orch: orch}, nil
}

func (s *session) close() {
	_ = s.runtime.Close()
}

func syncNotFound(err error) error {
	return model.WrapCLIError(model.ExitSyncNotFound, "sync point not found", err)
}

// lifecycleError keeps exit codes raised by workers and otherwise maps a
// failure to ExitWorkerFailed.
func lifecycleError(action string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return model.WrapCLIError(cliErr.Code, fmt.Sprintf("%s failed", action), err)
	}
	return model.WrapCLIError(model.ExitWorkerFailed, fmt.Sprintf("%s failed", action), err)
}

// scopeNames returns the sync point names a command acts on.
func (s *session) scopeNames(name string) []string {
	if name != "" {
		return []string{name}
	}
	return s.cfg.Names()
}
