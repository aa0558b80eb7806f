package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce is how long the reloader waits after the last write.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the policy file and hot-reloads it into a Server.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	logger  *zap.Logger
	paths   []string
}

// NewReloader creates a file watcher for the given paths. Empty and missing
// paths are skipped.
//
// The parent directory is watched rather than the file itself so editors
// that replace the file by rename are still seen.
func NewReloader(server *Server, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
			}
			dirs[dir] = true
		}
		watched = append(watched, abs)
	}

	return &Reloader{
		watcher: watcher,
		server:  server,
		logger:  server.logger.Named("reload"),
		paths:   watched,
	}, nil
}

// Paths returns the files being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Run watches for file changes and reloads policy. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.watches(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (r *Reloader) reload() {
	if err := r.server.ReloadPolicy(); err != nil {
		r.logger.Error("hot-reload failed", zap.Error(err))
		return
	}
	r.logger.Info("policy reloaded", zap.String("policy_hash", r.server.PolicyHash()))
}

func (r *Reloader) watches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, p := range r.paths {
		if p == abs {
			return true
		}
	}
	return false
}
