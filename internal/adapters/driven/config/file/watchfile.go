package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// WatchIDPrefix marks watches declared in a watch file.
const WatchIDPrefix = "file:"

// reloadDelay lets editors finish atomic writes before the file is re-read.
const reloadDelay = 150 * time.Millisecond

type watchFileEntry struct {
	Name     string   `toml:"name"`
	Keywords []string `toml:"keywords"`
	Channels []string `toml:"channels"`
	Interval string   `toml:"interval"`
	Enabled  *bool    `toml:"enabled"`
}

type watchFileDoc struct {
	Watch []watchFileEntry `toml:"watch"`
}

// LoadWatchFile parses a TOML file of [[watch]] tables.
// Watch IDs are derived from names so watermarks survive reloads.
func LoadWatchFile(path string) ([]domain.Watch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc watchFileDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse watch file %s: %w", path, err)
	}

	watches := make([]domain.Watch, 0, len(doc.Watch))
	seen := make(map[string]bool, len(doc.Watch))
	for i, e := range doc.Watch {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("watch file %s: entry %d: name is required", path, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("watch file %s: duplicate watch %q", path, name)
		}
		seen[name] = true

		interval := domain.DefaultWatchInterval
		if e.Interval != "" {
			d, err := time.ParseDuration(e.Interval)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("watch file %s: watch %q: invalid interval %q", path, name, e.Interval)
			}
			interval = d
		}

		watches = append(watches, domain.Watch{
			ID:       WatchIDPrefix + name,
			Name:     name,
			Keywords: e.Keywords,
			Channels: e.Channels,
			Interval: interval,
			Enabled:  e.Enabled == nil || *e.Enabled,
		})
	}
	return watches, nil
}

// WatchFileLoader reloads a watch file whenever it changes on disk.
type WatchFileLoader struct {
	path string
}

// NewWatchFileLoader creates a loader for path.
func NewWatchFileLoader(path string) *WatchFileLoader {
	return &WatchFileLoader{path: path}
}

// Path returns the watched file.
func (l *WatchFileLoader) Path() string {
	return l.path
}

// IDPrefix returns the prefix of the IDs of watches the file declares.
func (l *WatchFileLoader) IDPrefix() string {
	return WatchIDPrefix
}

// Run loads the file, passes the watches to apply, then re-applies after
// every change until ctx ends. Parse errors on reload are logged and the
// previous watches stay in effect.
func (l *WatchFileLoader) Run(ctx context.Context, apply func([]domain.Watch)) error {
	watches, err := LoadWatchFile(l.path)
	if err != nil {
		return err
	}
	apply(watches)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watch file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn("failed to close watch file watcher: %v", err)
		}
	}()

	// Watch the directory: editors replace files on save, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}
	logger.Info("Watching %s for changes", l.path)

	target := filepath.Clean(l.path)
	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				reload = time.After(reloadDelay)
			}
		case <-reload:
			reload = nil
			watches, err := LoadWatchFile(l.path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					logger.Warn("watch file %s removed, keeping previous watches", l.path)
				} else {
					logger.Error("reload watch file: %v", err)
				}
				continue
			}
			logger.Info("Reloaded %d watches from %s", len(watches), l.path)
			apply(watches)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch file watcher error: %v", err)
		}
	}
}
