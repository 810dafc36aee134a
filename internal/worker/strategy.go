package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// strategy holds what differs between rsync and unison: the container
// side, the one-off transfer command and the watch mechanism.
type strategy interface {
	defaultImage() string
	containerPort() int
	syncCommand(cfg model.SyncPointConfig, hostPort int) (string, []string)
	watch(ctx context.Context, w *SyncWorker) error
}

func strategyFor(s model.SyncStrategy) (strategy, error) {
	switch s {
	case model.StrategyRsync:
		return rsyncStrategy{}, nil
	case model.StrategyUnison:
		return unisonStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported sync strategy %q (valid: rsync, unison)", s)
	}
}

// sourceRoot returns src without its trailing slash, keeping "/" intact.
func sourceRoot(src string) string {
	if len(src) > 1 {
		return strings.TrimSuffix(src, "/")
	}
	return src
}
