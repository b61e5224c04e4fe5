package macros

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tagdeck/internal/library"
	"tagdeck/internal/logging"
)

func newTestLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

type opRecord struct {
	op    string
	name  string
	value string
}

type fakeLib struct {
	dir     string
	ops     []opRecord
	tagIDs  map[string]int64
	nextTag int64
	tagged  map[int64][]int64
}

func newFakeLib(dir string) *fakeLib {
	return &fakeLib{dir: dir, tagIDs: map[string]int64{}, nextTag: 2, tagged: map[int64][]int64{}}
}

func (f *fakeLib) Dir() string { return f.dir }

func (f *fakeLib) AddEntryField(entryID int64, name string, fieldType library.FieldType, value string) error {
	f.ops = append(f.ops, opRecord{op: "add", name: name, value: value})
	return nil
}

func (f *fakeLib) UpdateEntryField(entryID int64, name string, value string) error {
	f.ops = append(f.ops, opRecord{op: "update", name: name, value: value})
	return nil
}

func (f *fakeLib) TagFromStrings(names []string) []int64 {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := f.tagIDs[name]
		if !ok {
			id = f.nextTag
			f.nextTag++
			f.tagIDs[name] = id
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeLib) AddTagToEntry(entryID int64, tagID int64) error {
	f.tagged[entryID] = append(f.tagged[entryID], tagID)
	return nil
}

func TestStripWebProtocol(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://example.com/a", "example.com/a"},
		{"http://www.example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"https://www.example.com/p/1", "example.com/p/1"},
		{"example.com", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripWebProtocol(tt.in); got != tt.want {
			t.Fatalf("StripWebProtocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanURLRewritesTextLineFieldsOnly(t *testing.T) {
	lib := newFakeLib(t.TempDir())
	r := NewRunner(newTestLogger(), lib, nil)
	entry := &library.Entry{
		ID:   1,
		Path: "pic.png",
		Fields: []library.Field{
			{Name: FieldSource, Type: library.FieldTypeTextLine, Value: "https://www.example.com/p/9"},
			{Name: FieldDescription, Type: library.FieldTypeTextBox, Value: "https://notes.example.com"},
			{Name: FieldTitle, Type: library.FieldTypeTextLine, Value: "already clean"},
		},
	}

	if err := r.Run(CleanURL, entry); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []opRecord{{op: "update", name: FieldSource, value: "example.com/p/9"}}
	if !reflect.DeepEqual(lib.ops, want) {
		t.Fatalf("ops = %v, want %v", lib.ops, want)
	}
}

func TestBuildURLUsesSourceFolder(t *testing.T) {
	lib := newFakeLib(t.TempDir())
	r := NewRunner(newTestLogger(), lib, nil)

	entry := &library.Entry{ID: 2, Path: "Instagram/abc123.jpg"}
	if err := r.Run(BuildURL, entry); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []opRecord{{op: "add", name: FieldSource, value: "https://www.instagram.com/p/abc123/"}}
	if !reflect.DeepEqual(lib.ops, want) {
		t.Fatalf("ops = %v, want %v", lib.ops, want)
	}

	// Files at the library root have no source folder and derive nothing.
	lib.ops = nil
	if err := r.Run(BuildURL, &library.Entry{ID: 3, Path: "loose.png"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lib.ops) != 0 {
		t.Fatalf("ops = %v, want none for rootless entry", lib.ops)
	}
}

func TestMatchAppliesConditions(t *testing.T) {
	lib := newFakeLib(t.TempDir())
	r := NewRunner(newTestLogger(), lib, []Condition{
		{PathContains: "wallpapers", TagNames: []string{"Wallpaper"}},
		{PathContains: "screenshots", TagNames: []string{"Screenshot"}},
	})

	entry := &library.Entry{ID: 4, Path: "Wallpapers/forest.png"}
	if err := r.Run(Match, entry); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := lib.tagged[4]; len(got) != 1 {
		t.Fatalf("tags applied = %v, want exactly the wallpaper tag", got)
	}
}

func TestSidecarParsesFieldsAndTags(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "twitter"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sidecar := `{
		"content": "a description",
		"author": "someone",
		"url": "https://example.com/p/1",
		"tags": ["art", "sketch"]
	}`
	if err := os.WriteFile(filepath.Join(dir, "twitter", "123.jpg.json"), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	lib := newFakeLib(dir)
	r := NewRunner(newTestLogger(), lib, nil)
	entry := &library.Entry{ID: 5, Path: "twitter/123.jpg"}
	if err := r.Run(Sidecar, entry); err != nil {
		t.Fatalf("Run: %v", err)
	}

	fields := map[string]string{}
	for _, op := range lib.ops {
		fields[op.name] = op.value
	}
	if fields[FieldDescription] != "a description" || fields[FieldArtist] != "someone" || fields[FieldSource] != "https://example.com/p/1" {
		t.Fatalf("fields = %v", fields)
	}
	if got := lib.tagged[5]; len(got) != 2 {
		t.Fatalf("tags = %v, want two sidecar tags", got)
	}
}

func TestSidecarMissingFileIsNoop(t *testing.T) {
	lib := newFakeLib(t.TempDir())
	r := NewRunner(newTestLogger(), lib, nil)
	if err := r.Run(Sidecar, &library.Entry{ID: 6, Path: "none.png"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lib.ops) != 0 || len(lib.tagged) != 0 {
		t.Fatalf("missing sidecar mutated the entry: %v %v", lib.ops, lib.tagged)
	}
}

func TestAutofillRunsEveryOtherMacroOnce(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "artstation"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	lib := newFakeLib(dir)
	r := NewRunner(newTestLogger(), lib, []Condition{
		{PathContains: "artstation", TagNames: []string{"Art"}},
	})
	entry := &library.Entry{
		ID:   7,
		Path: "artstation/xyz.png",
		Fields: []library.Field{
			{Name: FieldSource, Type: library.FieldTypeTextLine, Value: "https://www.old.example.com"},
		},
	}

	if err := r.Run(Autofill, entry); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var adds, updates int
	for _, op := range lib.ops {
		switch op.op {
		case "add":
			adds++
		case "update":
			updates++
		}
	}
	// BuildURL adds one field, CleanURL rewrites one, Match applies one tag.
	if adds != 1 || updates != 1 {
		t.Fatalf("ops = %v, want one add and one update", lib.ops)
	}
	if got := lib.tagged[7]; len(got) != 1 {
		t.Fatalf("tags = %v, want the single match tag", got)
	}
}
