package worker

import (
	"context"
	"strconv"

	"github.com/shinji-kodama/container-sync/internal/background"
	"github.com/shinji-kodama/container-sync/internal/docker"
	"github.com/shinji-kodama/container-sync/internal/model"
)

// DefaultUnisonImage runs a unison socket server on the volume.
const DefaultUnisonImage = "eugenmayer/unison:2.51.3-4.12.0-AMD64"

type unisonStrategy struct{}

func (unisonStrategy) defaultImage() string { return DefaultUnisonImage }
func (unisonStrategy) containerPort() int   { return docker.UnisonContainerPort }

// args builds the unison command line shared by one-off syncs and the
// repeat-mode watcher. In auto cli mode conflicts are resolved in favour
// of the host without prompting.
func (unisonStrategy) args(cfg model.SyncPointConfig, hostPort int) []string {
	src := sourceRoot(cfg.Src)
	args := []string{src, "socket://127.0.0.1:" + strconv.Itoa(hostPort) + "/"}
	if cfg.CLIMode != model.CLIModeManual {
		args = append(args, "-auto", "-batch", "-prefer", src)
	}
	for _, pattern := range cfg.SyncExcludes {
		args = append(args, "-ignore", "Name "+pattern)
	}
	if !cfg.Verbose {
		args = append(args, "-silent")
	}
	return append(args, cfg.SyncArgs...)
}

func (s unisonStrategy) syncCommand(cfg model.SyncPointConfig, hostPort int) (string, []string) {
	return "unison", s.args(cfg, hostPort)
}

// watch forks "unison -repeat watch". The process is detached from ctx
// and from the terminal's process group so an interrupt reaches it only
// through Stop.
func (s unisonStrategy) watch(ctx context.Context, w *SyncWorker) error {
	hostPort, err := w.resolvePort(ctx)
	if err != nil {
		return err
	}

	args := append(s.args(w.cfg, hostPort), "-repeat", "watch")
	cmd := w.opts.command(context.WithoutCancel(ctx), "unison", args...)
	if w.cfg.Verbose {
		cmd.Stdout = w.opts.output
		cmd.Stderr = w.opts.output
	}
	background.Detach(cmd)

	process, err := background.StartProcess(cmd)
	if err != nil {
		return err
	}
	w.setProcess(process)
	w.log.Debug("Unison watcher started")
	return nil
}
