package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/shinji-kodama/container-sync/internal/background"
	"github.com/shinji-kodama/container-sync/internal/docker"
	"github.com/shinji-kodama/container-sync/internal/model"
)

// DefaultRsyncImage runs an rsync daemon exporting the volume as the
// "volume" module.
const DefaultRsyncImage = "eugenmayer/rsync"

type rsyncStrategy struct{}

func (rsyncStrategy) defaultImage() string { return DefaultRsyncImage }
func (rsyncStrategy) containerPort() int   { return docker.RsyncContainerPort }

// syncCommand pushes src into the daemon. The trailing slash of src is
// passed through untouched: "dir/" copies the contents, "dir" the
// directory itself.
func (rsyncStrategy) syncCommand(cfg model.SyncPointConfig, hostPort int) (string, []string) {
	args := []string{"-ap", "--delete"}
	if cfg.Verbose {
		args = append(args, "-v")
	}
	for _, pattern := range cfg.SyncExcludes {
		args = append(args, "--exclude="+pattern)
	}
	args = append(args, cfg.SyncArgs...)
	args = append(args, cfg.Src, "rsync://127.0.0.1:"+strconv.Itoa(hostPort)+"/volume/")
	return "rsync", args
}

// watch starts an in-process watcher that syncs after changes settle.
// The watcher outlives ctx cancellation; only Kill (via Stop) ends it.
func (rsyncStrategy) watch(ctx context.Context, w *SyncWorker) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	root := sourceRoot(w.cfg.Src)
	if err := addTree(watcher, root, root, w.cfg.WatchExcludes); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	task := background.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		defer watcher.Close()
		return w.watchLoop(ctx, watcher, root)
	})
	w.setThread(task)
	return nil
}

// watchLoop debounces file events and runs Sync once the tree has been
// quiet for the configured period. Sync failures are logged and the loop
// keeps going; a watcher error ends it.
func (w *SyncWorker) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, root string) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.opts.debounce)
		} else {
			timer.Reset(w.opts.debounce)
		}
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if excluded(relativeTo(root, ev.Name), w.cfg.WatchExcludes) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories are not covered by the existing watches.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, ev.Name, root, w.cfg.WatchExcludes); err != nil {
						w.log.Warn("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			w.log.Debug("Change detected", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; a full sync catches up.
				w.log.Warn("File watcher overflowed", zap.Error(err))
				schedule()
				continue
			}
			return fmt.Errorf("file watcher: %w", err)

		case <-fire:
			fire = nil
			if err := w.Sync(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("Sync after change failed", zap.Error(err))
			}
		}
	}
}

// addTree watches dir and every directory below it that is not excluded.
func addTree(watcher *fsnotify.Watcher, dir, root string, excludes []string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			// Unreadable subdirectories are skipped.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && excluded(relativeTo(root, p), excludes) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func relativeTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// excluded reports whether rel (slash separated, relative to the watch
// root) matches a watch_excludes pattern. A pattern matches the whole
// relative path, any leading directory of it, or any single path
// element, with path.Match glob syntax.
func excluded(rel string, patterns []string) bool {
	if rel == "." || rel == "" {
		return false
	}
	elems := strings.Split(rel, "/")

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		if rel == pattern || strings.HasPrefix(rel, pattern+"/") {
			return true
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		for _, elem := range elems {
			if ok, _ := path.Match(pattern, elem); ok {
				return true
			}
		}
	}
	return false
}
