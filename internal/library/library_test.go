package library

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagdeck/internal/logging"
)

func newTestLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func openTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	lib := New(newTestLogger())
	status := lib.Open(dir)
	if !status.Success {
		t.Fatalf("Open() status = %+v", status)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib, dir
}

func TestOpenSeedsWellKnownTags(t *testing.T) {
	lib, dir := openTestLibrary(t)

	tags := lib.Tags()
	if len(tags) != 2 {
		t.Fatalf("seeded tags = %d, want 2", len(tags))
	}
	if tags[0].ID != TagIDArchived || tags[1].ID != TagIDFavorite {
		t.Fatalf("seeded tag ids = %d, %d", tags[0].ID, tags[1].ID)
	}
	if lib.PageSize() != defaultPageSize {
		t.Fatalf("PageSize() = %d, want %d", lib.PageSize(), defaultPageSize)
	}

	if _, err := os.Stat(filepath.Join(dir, metaDirName, dbFileName)); err != nil {
		t.Fatalf("database file missing after first open: %v", err)
	}
}

func TestOpenNonexistentDirectoryFails(t *testing.T) {
	lib := New(newTestLogger())
	status := lib.Open(filepath.Join(t.TempDir(), "missing"))
	if status.Success {
		t.Fatalf("Open() succeeded for missing directory")
	}
	if status.Message == "" {
		t.Fatalf("Open() failure carries no message")
	}
}

func TestOpenLegacyDatabaseRequiresMigration(t *testing.T) {
	dir := t.TempDir()
	metaDir := filepath.Join(dir, metaDirName)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, legacyDBFileName), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lib := New(newTestLogger())
	status := lib.Open(dir)
	if status.Success || !status.MigrationRequired {
		t.Fatalf("Open() status = %+v, want migration required", status)
	}
}

func TestOpenSecondProcessLockConflict(t *testing.T) {
	lib, dir := openTestLibrary(t)
	_ = lib

	second := New(newTestLogger())
	status := second.Open(dir)
	if status.Success {
		t.Fatalf("second Open() succeeded while lock held")
	}
	if !strings.Contains(status.Message, "in use") {
		t.Fatalf("second Open() message = %q", status.Message)
	}
}

func TestReopenRoundTripsEntriesAndTags(t *testing.T) {
	dir := t.TempDir()
	lib := New(newTestLogger())
	if status := lib.Open(dir); !status.Success {
		t.Fatalf("Open() status = %+v", status)
	}
	entry, created := lib.AddEntry("photos/cat.png")
	if !created {
		t.Fatalf("AddEntry() reported existing entry")
	}
	ids := lib.TagFromStrings([]string{"pets", "cats"})
	for _, id := range ids {
		if err := lib.AddTagToEntry(entry.ID, id); err != nil {
			t.Fatalf("AddTagToEntry() error = %v", err)
		}
	}
	if err := lib.AddEntryField(entry.ID, "description", FieldTypeTextBox, "a cat"); err != nil {
		t.Fatalf("AddEntryField() error = %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := New(newTestLogger())
	if status := reopened.Open(dir); !status.Success {
		t.Fatalf("reopen status = %+v", status)
	}
	defer reopened.Close()

	if reopened.EntriesCount() != 1 {
		t.Fatalf("EntriesCount() = %d, want 1", reopened.EntriesCount())
	}
	got, ok := reopened.EntryByID(entry.ID)
	if !ok {
		t.Fatalf("EntryByID(%d) missing after reopen", entry.ID)
	}
	if got.Path != "photos/cat.png" || len(got.Tags) != 2 || len(got.Fields) != 1 {
		t.Fatalf("reopened entry = %+v", got)
	}
	if len(reopened.Tags()) != 4 {
		t.Fatalf("reopened tags = %d, want 4", len(reopened.Tags()))
	}
}

func TestAddEntryDeduplicatesPath(t *testing.T) {
	lib, _ := openTestLibrary(t)
	first, created := lib.AddEntry("a/b.png")
	if !created {
		t.Fatalf("first AddEntry() not created")
	}
	second, created := lib.AddEntry("a/b.png")
	if created || second.ID != first.ID {
		t.Fatalf("duplicate AddEntry() = (%+v, %v)", second, created)
	}
}

func TestTagFromStringsMatchesAliases(t *testing.T) {
	lib, _ := openTestLibrary(t)
	ids := lib.TagFromStrings([]string{"archive", "Favorited", "brand-new"})
	if len(ids) != 3 {
		t.Fatalf("TagFromStrings() = %v", ids)
	}
	if ids[0] != TagIDArchived || ids[1] != TagIDFavorite {
		t.Fatalf("expected alias resolution to well-known tags, got %v", ids)
	}
	if ids[2] <= TagIDFavorite {
		t.Fatalf("new tag id = %d, want freshly allocated", ids[2])
	}
}

func TestSearchPaginatesAndCounts(t *testing.T) {
	lib, _ := openTestLibrary(t)
	for i := 0; i < 23; i++ {
		lib.AddEntry(filepath.Join("pics", stringsRepeatName(i)))
	}

	filter := ShowAll().WithPageSize(10)
	result := lib.Search(filter)
	if result.TotalCount != 23 || len(result.Entries) != 10 {
		t.Fatalf("page 0: total=%d len=%d", result.TotalCount, len(result.Entries))
	}

	result = lib.Search(filter.WithPage(2))
	if result.TotalCount != 23 || len(result.Entries) != 3 {
		t.Fatalf("page 2: total=%d len=%d", result.TotalCount, len(result.Entries))
	}

	result = lib.Search(filter.WithPage(9))
	if len(result.Entries) != 0 {
		t.Fatalf("out-of-range page returned %d entries", len(result.Entries))
	}
}

func TestSearchFiltersByTag(t *testing.T) {
	lib, _ := openTestLibrary(t)
	tagged, _ := lib.AddEntry("keep/one.png")
	lib.AddEntry("skip/two.png")
	ids := lib.TagFromStrings([]string{"wanted"})
	if err := lib.AddTagToEntry(tagged.ID, ids[0]); err != nil {
		t.Fatalf("AddTagToEntry() error = %v", err)
	}

	result := lib.Search(FromQuery("tag:wanted"))
	if result.TotalCount != 1 || result.Entries[0].ID != tagged.ID {
		t.Fatalf("tag search result = %+v", result)
	}
}

func TestSearchReturnsSnapshots(t *testing.T) {
	lib, _ := openTestLibrary(t)
	entry, _ := lib.AddEntry("pics/cat.png")

	before := lib.Search(ShowAll()).Entries[0]
	if err := lib.AddTagToEntry(entry.ID, TagIDFavorite); err != nil {
		t.Fatalf("AddTagToEntry() error = %v", err)
	}
	if err := lib.AddEntryField(entry.ID, "title", FieldTypeTextLine, "cat"); err != nil {
		t.Fatalf("AddEntryField() error = %v", err)
	}
	if before.HasTag(TagIDFavorite) || len(before.Fields) != 0 {
		t.Fatalf("earlier search result mutated: tags=%v fields=%v", before.Tags, before.Fields)
	}

	after := lib.Search(ShowAll()).Entries[0]
	if !after.HasTag(TagIDFavorite) || len(after.Fields) != 1 {
		t.Fatalf("fresh search result = %+v, want favorite tag and one field", after)
	}
}

func TestRemoveEntry(t *testing.T) {
	lib, _ := openTestLibrary(t)
	entry, _ := lib.AddEntry("x/y.png")
	if !lib.RemoveEntry(entry.ID) {
		t.Fatalf("RemoveEntry() = false")
	}
	if lib.RemoveEntry(entry.ID) {
		t.Fatalf("second RemoveEntry() = true")
	}
	if lib.EntriesCount() != 0 {
		t.Fatalf("EntriesCount() = %d after removal", lib.EntriesCount())
	}
}

func TestBackupWritesTimestampedCopy(t *testing.T) {
	lib, dir := openTestLibrary(t)
	lib.AddEntry("a.png")

	target, err := lib.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !strings.HasPrefix(target, filepath.Join(dir, metaDirName, backupDirName)) {
		t.Fatalf("Backup() target = %q", target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile(backup) error = %v", err)
	}
	if !strings.Contains(string(data), "a.png") {
		t.Fatalf("backup does not contain entry payload")
	}
}

func TestCloseReleasesLock(t *testing.T) {
	dir := t.TempDir()
	lib := New(newTestLogger())
	if status := lib.Open(dir); !status.Success {
		t.Fatalf("Open() status = %+v", status)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again := New(newTestLogger())
	if status := again.Open(dir); !status.Success {
		t.Fatalf("reopen after Close() status = %+v", status)
	}
	_ = again.Close()
}

func stringsRepeatName(i int) string {
	return "img_" + string(rune('a'+i%26)) + "_" + strings.Repeat("x", i%3+1) + ".png"
}
