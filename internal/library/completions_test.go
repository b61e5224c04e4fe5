package library

import (
	"testing"
)

func TestCompletions_SeedsForShortInput(t *testing.T) {
	lib, _ := openTestLibrary(t)
	got := lib.Completions("ta")
	if len(got) != len(completionSeeds) {
		t.Fatalf("Completions(short) = %v", got)
	}
	if got[0] != "filetype:" || got[len(got)-1] != "special:untagged" {
		t.Fatalf("Completions(short) = %v", got)
	}
}

func TestCompletions_TagNames(t *testing.T) {
	lib, _ := openTestLibrary(t)
	lib.TagFromStrings([]string{"sunset"})

	got := lib.Completions("tag:s")
	want := []string{"tag:Archived", "tag:Favorite", "tag:sunset"}
	if len(got) != len(want) {
		t.Fatalf("Completions(tag:) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Completions(tag:)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompletions_KeepsPrecedingText(t *testing.T) {
	lib, _ := openTestLibrary(t)
	got := lib.Completions("beach tag_id:0")
	if len(got) == 0 {
		t.Fatalf("Completions() empty")
	}
	if got[0] != "beach tag_id:0" {
		t.Fatalf("Completions()[0] = %q", got[0])
	}
}

func TestCompletions_PathsAndFiletypes(t *testing.T) {
	lib, _ := openTestLibrary(t)
	lib.AddEntry("trips/beach.png")
	lib.AddEntry("trips/notes.txt")

	paths := lib.Completions("path:tri")
	if len(paths) != 2 || paths[0] != "path:trips/beach.png" {
		t.Fatalf("Completions(path:) = %v", paths)
	}

	exts := lib.Completions("filetype:p")
	if len(exts) != 2 {
		t.Fatalf("Completions(filetype:) = %v", exts)
	}
	seen := map[string]bool{}
	for _, e := range exts {
		seen[e] = true
	}
	if !seen["filetype:png"] || !seen["filetype:txt"] {
		t.Fatalf("Completions(filetype:) = %v", exts)
	}
}
