// Package macros runs named post-import transformations against single
// library entries, deriving fields and tags from sidecar metadata, folder
// layout, and saved match conditions.
package macros

import (
	"fmt"
	"path"
	"strings"

	"tagdeck/internal/library"
	"tagdeck/internal/logging"
)

// ID identifies one macro. Autofill runs every other macro once each, in
// declaration order.
type ID int

const (
	Autofill ID = iota
	Sidecar
	BuildURL
	Match
	CleanURL
)

// order is the declaration order Autofill walks.
var order = []ID{Autofill, Sidecar, BuildURL, Match, CleanURL}

func (id ID) String() string {
	switch id {
	case Autofill:
		return "autofill"
	case Sidecar:
		return "sidecar"
	case BuildURL:
		return "build_url"
	case Match:
		return "match"
	case CleanURL:
		return "clean_url"
	default:
		return fmt.Sprintf("macro(%d)", int(id))
	}
}

// Well-known field names macros write into.
const (
	FieldSource      = "Source"
	FieldTitle       = "Title"
	FieldArtist      = "Artist"
	FieldDescription = "Description"
)

// LibraryOps is the library surface macros mutate entries through.
type LibraryOps interface {
	Dir() string
	AddEntryField(entryID int64, name string, fieldType library.FieldType, value string) error
	UpdateEntryField(entryID int64, name string, value string) error
	TagFromStrings(names []string) []int64
	AddTagToEntry(entryID int64, tagID int64) error
}

// Condition is one saved match rule: entries whose path contains the
// fragment receive the named tags.
type Condition struct {
	PathContains string
	TagNames     []string
}

// Runner dispatches macros against entries.
type Runner struct {
	logger     *logging.Logger
	lib        LibraryOps
	conditions []Condition
}

func NewRunner(logger *logging.Logger, lib LibraryOps, conditions []Condition) *Runner {
	if logger == nil {
		panic("macros.NewRunner: logger must not be nil")
	}
	if lib == nil {
		panic("macros.NewRunner: library must not be nil")
	}
	return &Runner{logger: logger, lib: lib, conditions: conditions}
}

// Run executes one macro against an entry. Autofill fans out to every other
// macro once each and never reenters itself.
func (r *Runner) Run(id ID, entry *library.Entry) error {
	if entry == nil {
		return fmt.Errorf("macro %s: entry is nil", id)
	}
	source := entrySource(entry)
	r.logger.Info("running macro",
		logging.Field("macro", id.String()),
		logging.Field("entry_id", entry.ID),
		logging.Field("source", source),
	)

	switch id {
	case Autofill:
		for _, other := range order {
			if other == Autofill {
				continue
			}
			if err := r.Run(other, entry); err != nil {
				return err
			}
		}
		return nil
	case Sidecar:
		return r.runSidecar(entry)
	case BuildURL:
		return r.runBuildURL(entry, source)
	case Match:
		return r.runMatch(entry)
	case CleanURL:
		return r.runCleanURL(entry)
	default:
		return fmt.Errorf("unknown macro %s", id)
	}
}

func (r *Runner) runBuildURL(entry *library.Entry, source string) error {
	url := buildSourceURL(entry, source)
	if url == "" {
		return nil
	}
	return r.lib.AddEntryField(entry.ID, FieldSource, library.FieldTypeTextLine, url)
}

func (r *Runner) runMatch(entry *library.Entry) error {
	lowered := strings.ToLower(entry.Path)
	for _, cond := range r.conditions {
		if cond.PathContains == "" || !strings.Contains(lowered, strings.ToLower(cond.PathContains)) {
			continue
		}
		for _, tagID := range r.lib.TagFromStrings(cond.TagNames) {
			if err := r.lib.AddTagToEntry(entry.ID, tagID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) runCleanURL(entry *library.Entry) error {
	for _, field := range entry.Fields {
		if field.Type != library.FieldTypeTextLine || field.Value == "" {
			continue
		}
		cleaned := StripWebProtocol(field.Value)
		if cleaned == field.Value {
			continue
		}
		if err := r.lib.UpdateEntryField(entry.ID, field.Name, cleaned); err != nil {
			return err
		}
	}
	return nil
}

// StripWebProtocol removes leading scheme and www prefixes from a URL-like
// string.
func StripWebProtocol(value string) string {
	out := value
	for {
		trimmed := out
		for _, prefix := range []string{"https://", "http://", "www."} {
			if strings.HasPrefix(strings.ToLower(trimmed), prefix) {
				trimmed = trimmed[len(prefix):]
			}
		}
		if trimmed == out {
			return out
		}
		out = trimmed
	}
}

// entrySource is the entry's lowercased top-level folder, or empty when the
// file sits at the library root. It names the site a grabber downloaded
// from and keys the sidecar/URL heuristics.
func entrySource(entry *library.Entry) string {
	dir := path.Dir(entry.Path)
	if dir == "." || dir == "/" {
		return ""
	}
	parts := strings.Split(entry.Path, "/")
	return strings.ToLower(parts[0])
}

// fileStem is the entry's file name without extension.
func fileStem(entry *library.Entry) string {
	base := path.Base(entry.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

func buildSourceURL(entry *library.Entry, source string) string {
	stem := fileStem(entry)
	if stem == "" {
		return ""
	}
	switch source {
	case "instagram":
		return "https://www.instagram.com/p/" + stem + "/"
	case "twitter", "x":
		return "https://twitter.com/i/status/" + stem
	case "artstation":
		return "https://www.artstation.com/artwork/" + stem
	case "deviantart":
		return "https://www.deviantart.com/art/" + stem
	case "newgrounds":
		return "https://www.newgrounds.com/art/view/" + secondFolder(entry) + "/" + stem
	default:
		return ""
	}
}

func secondFolder(entry *library.Entry) string {
	parts := strings.Split(entry.Path, "/")
	if len(parts) < 3 {
		return ""
	}
	return strings.ToLower(parts[1])
}
