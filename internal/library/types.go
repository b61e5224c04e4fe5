package library

// Well-known tag IDs. Every library seeds these two tags at creation time and
// the grid derives its archived/favorite badges from them.
const (
	TagIDArchived int64 = 0
	TagIDFavorite int64 = 1
)

const defaultPageSize = 500

type Tag struct {
	ID      int64    `toml:"id"`
	Name    string   `toml:"name"`
	Aliases []string `toml:"aliases,omitempty"`
	Color   string   `toml:"color,omitempty"`
}

// Field is one named metadata value attached to an entry, e.g. a source URL
// or a description pulled from a sidecar file.
type Field struct {
	Name  string    `toml:"name"`
	Type  FieldType `toml:"type"`
	Value string    `toml:"value"`
}

type FieldType string

const (
	FieldTypeTextLine FieldType = "text_line"
	FieldTypeTextBox  FieldType = "text_box"
)

// Entry is one managed file: a path relative to the library directory plus
// its tags and fields.
type Entry struct {
	ID     int64   `toml:"id"`
	Path   string  `toml:"path"`
	Tags   []int64 `toml:"tags,omitempty"`
	Fields []Field `toml:"fields,omitempty"`
}

func (e *Entry) HasTag(tagID int64) bool {
	for _, id := range e.Tags {
		if id == tagID {
			return true
		}
	}
	return false
}

func (e *Entry) clone() *Entry {
	dup := *e
	dup.Tags = append([]int64(nil), e.Tags...)
	dup.Fields = append([]Field(nil), e.Fields...)
	return &dup
}

type Prefs struct {
	PageSize int `toml:"page_size"`
}

// Status reports the outcome of opening a library directory.
type Status struct {
	Success           bool
	Message           string
	MigrationRequired bool
}

type SearchResult struct {
	Entries    []*Entry
	TotalCount int
}
