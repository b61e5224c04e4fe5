package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tagdeck/internal/logging"
)

const defaultDebounce = 2 * time.Second

// Hooks are optional callbacks for scan progress and coalesced refresh
// triggers.
type Hooks struct {
	OnProgress func(scanned, added int)
	OnRefresh  func(added int)
	OnExit     func(error)
}

// Service runs one initial refresh walk and then watches the library
// directory, coalescing create/rename churn into repeat refreshes.
type Service struct {
	logger   *logging.Logger
	lib      Indexer
	hooks    Hooks
	debounce time.Duration
}

func NewService(logger *logging.Logger, lib Indexer, hooks Hooks) *Service {
	if logger == nil {
		panic("scan.NewService: logger must not be nil")
	}
	if lib == nil {
		panic("scan.NewService: library must not be nil")
	}
	return &Service{logger: logger, lib: lib, hooks: hooks, debounce: defaultDebounce}
}

func (s *Service) RunContext(ctx context.Context) error {
	added, err := Refresh(ctx, s.logger, s.lib, s.hooks.OnProgress)
	if err != nil {
		return err
	}
	if added > 0 && s.hooks.OnRefresh != nil {
		s.hooks.OnRefresh(added)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.watchTree(watcher); err != nil {
		return err
	}

	// Debounce timer; armed on the first interesting event, reset on each
	// further one, so a burst of downloads collapses into one refresh.
	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stopping library watcher: context canceled")
			return nil
		case event := <-watcher.Events:
			s.handleEvent(watcher, event, debounce)
		case err := <-watcher.Errors:
			if err != nil {
				s.logger.Warn("watcher error", logging.Field("error", err))
			}
		case <-debounce.C:
			added, err := Refresh(ctx, s.logger, s.lib, s.hooks.OnProgress)
			if err != nil {
				return err
			}
			if added > 0 && s.hooks.OnRefresh != nil {
				s.hooks.OnRefresh(added)
			}
		}
	}
}

func (s *Service) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, debounce *time.Timer) {
	if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}
	s.logger.Debugf("fsnotify event: op=%s path=%s", event.Op.String(), event.Name)

	// New directories are added to the watch set so nested drops are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = watcher.Add(event.Name)
		}
	}

	if !debounce.Stop() {
		select {
		case <-debounce.C:
		default:
		}
	}
	debounce.Reset(s.debounce)
}

// watchTree registers the library root and every non-hidden subdirectory.
func (s *Service) watchTree(watcher *fsnotify.Watcher) error {
	root := s.lib.Dir()
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch library directory %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			s.logger.Warn("failed to watch subdirectory",
				logging.Field("path", path),
				logging.Field("error", err),
			)
		}
		return nil
	})
}
