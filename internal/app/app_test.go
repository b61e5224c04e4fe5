package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tagdeck/internal/config"
	"tagdeck/internal/grid"
	"tagdeck/internal/logging"
	"tagdeck/internal/macros"
)

func newTestLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

type hookRecorder struct {
	mu       sync.Mutex
	statuses []string
	titles   []string
	errs     []error
}

func (h *hookRecorder) callbacks() Callbacks {
	return Callbacks{
		OnStatus: func(msg string) {
			h.mu.Lock()
			h.statuses = append(h.statuses, msg)
			h.mu.Unlock()
		},
		OnTitle: func(title string) {
			h.mu.Lock()
			h.titles = append(h.titles, title)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	}
}

func (h *hookRecorder) lastTitle() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.titles) == 0 {
		return ""
	}
	return h.titles[len(h.titles)-1]
}

func (h *hookRecorder) errCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func newTestApp(t *testing.T, rec *hookRecorder) *App {
	t.Helper()
	opts := config.Options{SettingsFile: filepath.Join(t.TempDir(), "settings.json")}
	var hooks Callbacks
	if rec != nil {
		hooks = rec.callbacks()
	}
	a := New(context.Background(), opts, config.DefaultSettings(), newTestLogger(), gridHooksNone(), hooks)
	t.Cleanup(a.Shutdown)
	return a
}

func gridHooksNone() grid.Hooks {
	return grid.Hooks{}
}

func writeLibraryFile(t *testing.T, dir, rel string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitForEntries(t *testing.T, a *App, want int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for a.Grid().TotalCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("grid total = %d, want at least %d", a.Grid().TotalCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenLibraryIndexesAndRemembers(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "one.png")
	writeLibraryFile(t, dir, "sub/two.png")

	rec := &hookRecorder{}
	a := newTestApp(t, rec)
	if err := a.OpenLibrary(dir); err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}

	waitForEntries(t, a, 2)
	if !strings.Contains(rec.lastTitle(), filepath.Base(dir)) {
		t.Fatalf("title = %q, want library name", rec.lastTitle())
	}
	recent := a.Settings().RecentLibraries
	if len(recent) == 0 || recent[0] != dir {
		t.Fatalf("recent libraries = %v, want %q first", recent, dir)
	}

	if err := a.CloseLibrary(); err != nil {
		t.Fatalf("CloseLibrary: %v", err)
	}
	if a.Grid().TotalCount() != 0 {
		t.Fatalf("grid still populated after close")
	}
}

func TestOpenLibraryFailureSurfacesInTitleAndError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := &hookRecorder{}
	a := newTestApp(t, rec)
	if err := a.OpenLibrary(file); err == nil {
		t.Fatalf("OpenLibrary succeeded on a plain file")
	}
	if rec.errCount() == 0 {
		t.Fatalf("error hook never fired")
	}
	if !strings.Contains(rec.lastTitle(), "failed to open") {
		t.Fatalf("title = %q, want open failure", rec.lastTitle())
	}
}

func TestLegacyLibraryReportsMigration(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, ".tagdeck/library.json")

	a := newTestApp(t, nil)
	err := a.OpenLibrary(dir)
	if err == nil || !strings.Contains(err.Error(), "migration required") {
		t.Fatalf("err = %v, want migration required", err)
	}
}

func TestRunMacroOnSelection(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "instagram/abc123.jpg")

	a := newTestApp(t, nil)
	if err := a.OpenLibrary(dir); err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	waitForEntries(t, a, 1)

	if err := a.RunMacroOnSelection(macros.BuildURL); err == nil {
		t.Fatalf("macro ran with empty selection")
	}

	a.Grid().SelectAll()
	if err := a.RunMacroOnSelection(macros.BuildURL); err != nil {
		t.Fatalf("RunMacroOnSelection: %v", err)
	}

	entry := a.Grid().Slots()[0].Entry
	var source string
	for _, field := range entry.Fields {
		if field.Name == macros.FieldSource {
			source = field.Value
		}
	}
	if !strings.Contains(source, "instagram.com") {
		t.Fatalf("source field = %q, want derived instagram URL", source)
	}
}

func TestRemoveSelectionShrinksLibrary(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "a.png")
	writeLibraryFile(t, dir, "b.png")

	a := newTestApp(t, nil)
	if err := a.OpenLibrary(dir); err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	waitForEntries(t, a, 2)

	a.Grid().Click(0, grid.ClickPlain)
	if err := a.RemoveSelection(); err != nil {
		t.Fatalf("RemoveSelection: %v", err)
	}
	if got := a.Grid().TotalCount(); got != 1 {
		t.Fatalf("total after remove = %d, want 1", got)
	}
}

func TestOpenLastLibrary(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "a.png")

	settings := config.DefaultSettings()
	settings.RememberLibrary(dir)
	settings.OpenLastOnStart = true

	opts := config.Options{SettingsFile: filepath.Join(t.TempDir(), "settings.json")}
	a := New(context.Background(), opts, settings, newTestLogger(), gridHooksNone(), Callbacks{})
	t.Cleanup(a.Shutdown)

	attempted, err := a.OpenLastLibrary()
	if err != nil {
		t.Fatalf("OpenLastLibrary: %v", err)
	}
	if !attempted {
		t.Fatalf("open-on-start did not attempt the last library")
	}

	settings.OpenLastOnStart = false
	b := New(context.Background(), opts, settings, newTestLogger(), gridHooksNone(), Callbacks{})
	t.Cleanup(b.Shutdown)
	attempted, err = b.OpenLastLibrary()
	if err != nil || attempted {
		t.Fatalf("attempted = %v err = %v, want no attempt when disabled", attempted, err)
	}
}

func TestBackupReportsTarget(t *testing.T) {
	dir := t.TempDir()
	writeLibraryFile(t, dir, "a.png")

	rec := &hookRecorder{}
	a := newTestApp(t, rec)
	if err := a.OpenLibrary(dir); err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}

	target, err := a.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
}
