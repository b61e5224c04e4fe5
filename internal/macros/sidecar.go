package macros

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tagdeck/internal/library"
)

// sidecarFields maps downloader sidecar keys to entry fields. First match
// per field name wins.
var sidecarFields = []struct {
	key       string
	field     string
	fieldType library.FieldType
}{
	{"title", FieldTitle, library.FieldTypeTextLine},
	{"description", FieldDescription, library.FieldTypeTextBox},
	{"content", FieldDescription, library.FieldTypeTextBox},
	{"caption", FieldDescription, library.FieldTypeTextBox},
	{"artist", FieldArtist, library.FieldTypeTextLine},
	{"author", FieldArtist, library.FieldTypeTextLine},
	{"uploader", FieldArtist, library.FieldTypeTextLine},
	{"username", FieldArtist, library.FieldTypeTextLine},
	{"webpage_url", FieldSource, library.FieldTypeTextLine},
	{"post_url", FieldSource, library.FieldTypeTextLine},
	{"url", FieldSource, library.FieldTypeTextLine},
}

var sidecarTagKeys = []string{"tags", "hashtags", "categories"}

// runSidecar pulls fields and tags from the gallery-style `<file>.json`
// metadata sidecar a downloader left next to the entry's file. A missing
// sidecar is not an error.
func (r *Runner) runSidecar(entry *library.Entry) error {
	sidecarPath := filepath.Join(r.lib.Dir(), filepath.FromSlash(entry.Path)) + ".json"
	data, err := os.ReadFile(sidecarPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse sidecar %s: %w", sidecarPath, err)
	}

	seen := map[string]bool{}
	for _, mapping := range sidecarFields {
		if seen[mapping.field] {
			continue
		}
		value, ok := raw[mapping.key].(string)
		if !ok || value == "" {
			continue
		}
		if err := r.lib.AddEntryField(entry.ID, mapping.field, mapping.fieldType, value); err != nil {
			return err
		}
		seen[mapping.field] = true
	}

	for _, key := range sidecarTagKeys {
		names := stringList(raw[key])
		if len(names) == 0 {
			continue
		}
		for _, tagID := range r.lib.TagFromStrings(names) {
			if err := r.lib.AddTagToEntry(entry.ID, tagID); err != nil {
				return err
			}
		}
	}
	return nil
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
