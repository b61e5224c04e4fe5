// Package app is the application driver: it owns the library, the render
// queue, the grid controller, and the settings store, and exposes the
// operations the front-ends call.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"tagdeck/internal/config"
	"tagdeck/internal/grid"
	"tagdeck/internal/library"
	"tagdeck/internal/logging"
	"tagdeck/internal/macros"
	"tagdeck/internal/render"
	"tagdeck/internal/scan"
)

// Libraries below this entry count get an automatic directory refresh on
// open; larger ones wait for an explicit refresh.
const autoRefreshThreshold = 10000

// Callbacks are optional UI notifications. All fields may be nil.
type Callbacks struct {
	OnStatus func(string)
	OnTitle  func(string)
	OnError  func(error)
}

type App struct {
	logger *logging.Logger
	opts   config.Options
	hooks  Callbacks
	lib    *library.Library
	queue  *render.Queue
	grid   *grid.Controller
	runner *macros.Runner
	scans  *scan.Controller

	mu           sync.Mutex
	settings     config.Settings
	settingsPath string
}

func New(rootCtx context.Context, opts config.Options, settings config.Settings, logger *logging.Logger, gridHooks grid.Hooks, hooks Callbacks) *App {
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	lib := library.New(logger)
	queue := render.NewQueue(logger)
	a := &App{
		logger:       logger,
		opts:         opts,
		hooks:        hooks,
		lib:          lib,
		queue:        queue,
		grid:         grid.NewController(logger, queue, gridHooks),
		runner:       macros.NewRunner(logger, lib, nil),
		scans:        scan.NewController(rootCtx),
		settings:     settings,
		settingsPath: opts.SettingsFile,
	}
	a.grid.SetThumbSizeIndex(settings.ThumbSizeIndex)
	return a
}

func (a *App) Grid() *grid.Controller    { return a.grid }
func (a *App) Library() *library.Library { return a.lib }
func (a *App) Queue() *render.Queue      { return a.queue }

func (a *App) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// OpenLibrary opens the library at path and shows its first page. Open
// failures surface through the title and status callbacks and leave the
// grid empty.
func (a *App) OpenLibrary(path string) error {
	a.logger.Info("opening library", logging.Field("path", path))
	status := a.lib.Open(path)
	if !status.Success {
		msg := status.Message
		if status.MigrationRequired {
			msg = fmt.Sprintf("%s (migration required)", msg)
		}
		a.setTitle(fmt.Sprintf("tagdeck - failed to open %s", filepath.Base(path)))
		a.setStatus(msg)
		err := errors.New(msg)
		if a.hooks.OnError != nil {
			a.hooks.OnError(err)
		}
		return err
	}

	a.queue.StartWorkers(0)
	pageSize := a.lib.PageSize()
	if a.opts.PageSize > 0 {
		pageSize = a.opts.PageSize
	}
	a.grid.Attach(a.lib, pageSize)
	a.rememberLibrary(path)
	a.setTitle(fmt.Sprintf("tagdeck - %s", filepath.Base(path)))
	a.setStatus(fmt.Sprintf("Opened library %s (%d entries)", path, a.lib.EntriesCount()))

	if a.lib.EntriesCount() < autoRefreshThreshold {
		if err := a.startScan(); err != nil {
			a.logger.Warn("auto refresh did not start", logging.Field("error", err))
		}
	}
	return nil
}

// OpenLastLibrary opens the most recent library when the open-on-start
// setting asks for it. It reports whether an open was attempted.
func (a *App) OpenLastLibrary() (bool, error) {
	a.mu.Lock()
	last, ok := a.settings.LastLibrary()
	open := a.settings.OpenLastOnStart
	a.mu.Unlock()
	if !ok || !open {
		return false, nil
	}
	return true, a.OpenLibrary(last)
}

// RefreshDirectories starts a background walk for unindexed files.
func (a *App) RefreshDirectories() error {
	if !a.lib.IsOpen() {
		return library.ErrNotOpen
	}
	return a.startScan()
}

func (a *App) startScan() error {
	return a.scans.Start(a.lib, a.logger, scan.Hooks{
		OnProgress: func(scanned, added int) {
			a.setStatus(fmt.Sprintf("Scanning directories: %d files scanned, %d new", scanned, added))
		},
		OnRefresh: func(added int) {
			a.setStatus(fmt.Sprintf("Added %d new files", added))
			if err := a.lib.Save(); err != nil {
				a.logger.Warn("failed to save library after refresh", logging.Field("error", err))
			}
			a.grid.Refresh()
		},
		OnExit: func(err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				a.setStatus(fmt.Sprintf("Directory scan failed: %v", err))
			}
		},
	})
}

// CloseLibrary persists and releases the open library and empties the grid.
func (a *App) CloseLibrary() error {
	a.scans.StopAndWait(5 * time.Second)
	a.grid.Detach()
	err := a.lib.Close()
	a.setTitle("tagdeck")
	if err != nil {
		a.setStatus(fmt.Sprintf("Failed to close library: %v", err))
		return err
	}
	a.setStatus("Library closed")
	return nil
}

// Backup copies the library database into its backups folder.
func (a *App) Backup() (string, error) {
	start := time.Now()
	target, err := a.lib.Backup()
	if err != nil {
		a.setStatus(fmt.Sprintf("Backup failed: %v", err))
		return "", err
	}
	a.setStatus(fmt.Sprintf("Backed up library to %s (took %s)",
		filepath.Base(target), time.Since(start).Round(time.Millisecond)))
	return target, nil
}

// RunMacroOnSelection runs one macro against every selected entry, then
// refreshes the grid so derived badges and fields show up.
func (a *App) RunMacroOnSelection(id macros.ID) error {
	entries := a.grid.SelectedEntries()
	if len(entries) == 0 {
		return fmt.Errorf("no entries selected")
	}
	var errs []error
	for _, entry := range entries {
		if err := a.runner.Run(id, entry); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", entry.ID, err))
		}
	}
	if err := a.lib.Save(); err != nil {
		errs = append(errs, err)
	}
	a.grid.Refresh()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.setStatus(fmt.Sprintf("Macro %s finished with errors: %v", id, err))
		return err
	}
	a.setStatus(fmt.Sprintf("Macro %s finished on %d entries", id, len(entries)))
	return nil
}

// RemoveSelection deletes the selected entries from the library; the grid
// re-clamps its page on the following refresh.
func (a *App) RemoveSelection() error {
	entries := a.grid.SelectedEntries()
	if len(entries) == 0 {
		return fmt.Errorf("no entries selected")
	}
	for _, entry := range entries {
		a.lib.RemoveEntry(entry.ID)
	}
	if err := a.lib.Save(); err != nil {
		return err
	}
	a.grid.ClearSelection()
	a.grid.Refresh()
	a.setStatus(fmt.Sprintf("Removed %d entries", len(entries)))
	return nil
}

// Completions proposes search terms for a partially typed query.
func (a *App) Completions(text string) []string {
	return a.lib.Completions(text)
}

// SetThumbSizeIndex changes the thumbnail preset and persists the choice.
func (a *App) SetThumbSizeIndex(index int) {
	a.grid.SetThumbSizeIndex(index)
	a.mu.Lock()
	a.settings.ThumbSizeIndex = index
	a.saveSettingsLocked()
	a.mu.Unlock()
}

// Shutdown closes the open library and joins the render workers.
func (a *App) Shutdown() {
	if a.lib.IsOpen() {
		if err := a.CloseLibrary(); err != nil {
			a.logger.Warn("error closing library during shutdown", logging.Field("error", err))
		}
	}
	a.queue.Shutdown()
	a.logger.Info("application shut down")
}

func (a *App) rememberLibrary(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings.RememberLibrary(path)
	a.saveSettingsLocked()
}

func (a *App) saveSettingsLocked() {
	if err := config.SaveSettings(a.settingsPath, a.settings); err != nil {
		a.logger.Warn("failed to save settings", logging.Field("error", err))
	}
}

func (a *App) setStatus(msg string) {
	if a.hooks.OnStatus != nil {
		a.hooks.OnStatus(msg)
	}
}

func (a *App) setTitle(title string) {
	if a.hooks.OnTitle != nil {
		a.hooks.OnTitle(title)
	}
}
