package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"tagdeck/internal/logging"
)

const (
	metaDirName      = ".tagdeck"
	dbFileName       = "library.toml"
	legacyDBFileName = "library.json"
	lockFileName     = "library.lock"
	backupDirName    = "backups"

	libraryFileVersion = 1

	lockRetryInitial = 50 * time.Millisecond
	lockRetryMax     = 500 * time.Millisecond
	lockMaxTries     = 6
)

var ErrNotOpen = errors.New("no library is open")

// Library is the tag database for one managed directory. All methods are safe
// for concurrent use; the render workers only ever receive path strings, so in
// practice mutation comes from the control thread.
type Library struct {
	logger *logging.Logger

	mu          sync.RWMutex
	dir         string
	lock        *flock.Flock
	entries     []*Entry
	byID        map[int64]*Entry
	byPath      map[string]*Entry
	tags        []Tag
	prefs       Prefs
	nextEntryID int64
	nextTagID   int64
	dirty       bool
}

type libraryFile struct {
	Version int      `toml:"version"`
	Prefs   Prefs    `toml:"prefs"`
	Tags    []Tag    `toml:"tags"`
	Entries []*Entry `toml:"entries"`
}

func New(logger *logging.Logger) *Library {
	if logger == nil {
		panic("library.New: logger must not be nil")
	}
	return &Library{logger: logger}
}

// Open attaches the library to a directory, creating the on-disk database if
// this is the first open. The returned Status mirrors the open contract: a
// failure is reported as a message, not an error, and a legacy JSON database
// flips MigrationRequired instead of opening.
func (l *Library) Open(path string) Status {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	info, err := os.Stat(cleaned)
	if err != nil {
		return Status{Message: fmt.Sprintf("library directory is not accessible: %v", err)}
	}
	if !info.IsDir() {
		return Status{Message: fmt.Sprintf("library path %s is not a directory", cleaned)}
	}

	metaDir := filepath.Join(cleaned, metaDirName)
	dbPath := filepath.Join(metaDir, dbFileName)
	legacyPath := filepath.Join(metaDir, legacyDBFileName)
	if _, err := os.Stat(legacyPath); err == nil {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			l.logger.Warn("legacy library database found", logging.Field("path", legacyPath))
			return Status{
				Message:           fmt.Sprintf("library at %s uses the legacy JSON format and must be migrated", cleaned),
				MigrationRequired: true,
			}
		}
	}

	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return Status{Message: fmt.Sprintf("failed to prepare library metadata directory: %v", err)}
	}

	lock, err := l.acquireLock(filepath.Join(metaDir, lockFileName))
	if err != nil {
		return Status{Message: err.Error()}
	}

	db, err := loadLibraryFile(dbPath)
	if err != nil {
		_ = lock.Unlock()
		return Status{Message: fmt.Sprintf("failed to load library database: %v", err)}
	}

	l.mu.Lock()
	l.dir = cleaned
	l.lock = lock
	l.installLocked(db)
	l.mu.Unlock()

	if db == nil {
		// First open of this directory: persist the seeded database.
		if err := l.Save(); err != nil {
			l.logger.Warn("failed to write initial library database", logging.Field("error", err))
		}
	}

	l.logger.Info("library opened",
		logging.Field("path", cleaned),
		logging.Field("entries", l.EntriesCount()),
		logging.Field("tags", len(l.Tags())),
	)
	return Status{Success: true}
}

// acquireLock takes the library's advisory file lock, retrying briefly so a
// just-exited previous process does not cause a spurious failure.
func (l *Library) acquireLock(lockPath string) (*flock.Flock, error) {
	fileLock := flock.New(lockPath)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = lockRetryInitial
	retry.MaxInterval = lockRetryMax
	retry.Reset()

	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		locked, lockErr := fileLock.TryLock()
		if lockErr != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("acquire library lock: %w", lockErr))
		}
		if !locked {
			return struct{}{}, errors.New("library is locked by another process")
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(lockMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.logger.Debug("library lock busy, retrying",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("library at %s is in use: %w", filepath.Dir(filepath.Dir(lockPath)), err)
	}
	return fileLock, nil
}

func loadLibraryFile(dbPath string) (*libraryFile, error) {
	data, err := os.ReadFile(dbPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var db libraryFile
	if err := toml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse %s: %w", dbPath, err)
	}
	return &db, nil
}

// installLocked replaces the in-memory state with db, seeding a fresh database
// when db is nil. Caller holds l.mu.
func (l *Library) installLocked(db *libraryFile) {
	if db == nil {
		db = &libraryFile{
			Version: libraryFileVersion,
			Prefs:   Prefs{PageSize: defaultPageSize},
			Tags: []Tag{
				{ID: TagIDArchived, Name: "Archived", Aliases: []string{"archive"}, Color: "red"},
				{ID: TagIDFavorite, Name: "Favorite", Aliases: []string{"favorited", "favorites"}, Color: "yellow"},
			},
		}
		l.dirty = true
	} else {
		l.dirty = false
	}
	if db.Prefs.PageSize <= 0 {
		db.Prefs.PageSize = defaultPageSize
	}

	l.entries = db.Entries
	l.tags = db.Tags
	l.prefs = db.Prefs
	l.byID = make(map[int64]*Entry, len(db.Entries))
	l.byPath = make(map[string]*Entry, len(db.Entries))
	l.nextEntryID = 0
	l.nextTagID = TagIDFavorite + 1
	for _, entry := range db.Entries {
		l.byID[entry.ID] = entry
		l.byPath[entry.Path] = entry
		if entry.ID >= l.nextEntryID {
			l.nextEntryID = entry.ID + 1
		}
	}
	for _, tag := range db.Tags {
		if tag.ID >= l.nextTagID {
			l.nextTagID = tag.ID + 1
		}
	}
}

func (l *Library) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dir != ""
}

// Dir returns the library directory, empty when no library is open.
func (l *Library) Dir() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dir
}

func (l *Library) PageSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.prefs.PageSize <= 0 {
		return defaultPageSize
	}
	return l.prefs.PageSize
}

func (l *Library) EntriesCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Library) Tags() []Tag {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Tag(nil), l.tags...)
}

// Paths returns every indexed entry path, sorted.
func (l *Library) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		paths = append(paths, entry.Path)
	}
	sort.Strings(paths)
	return paths
}

// Search evaluates the filter against every entry and returns the requested
// page window plus the total match count. The returned entries are
// snapshots; later library mutations do not show through them.
func (l *Library) Search(filter FilterState) SearchResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	terms := parseQuery(filter.Query)
	tagNames := l.tagNameIndexLocked()

	var matched []*Entry
	for _, entry := range l.entries {
		if matchEntry(entry, terms, tagNames) {
			matched = append(matched, entry)
		}
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	start := filter.PageIndex * pageSize
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	window := matched[start:end]
	entries := make([]*Entry, len(window))
	for i, entry := range window {
		entries[i] = entry.clone()
	}
	return SearchResult{
		Entries:    entries,
		TotalCount: len(matched),
	}
}

func (l *Library) tagNameIndexLocked() map[int64][]string {
	index := make(map[int64][]string, len(l.tags))
	for _, tag := range l.tags {
		names := make([]string, 0, 1+len(tag.Aliases))
		names = append(names, strings.ToLower(tag.Name))
		for _, alias := range tag.Aliases {
			names = append(names, strings.ToLower(alias))
		}
		index[tag.ID] = names
	}
	return index
}

// AddEntry indexes a new file path relative to the library directory. The
// second return value reports whether the entry was newly created.
func (l *Library) AddEntry(relPath string) (*Entry, bool) {
	cleaned := filepath.ToSlash(filepath.Clean(relPath))
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byPath[cleaned]; ok {
		return existing, false
	}
	entry := &Entry{ID: l.nextEntryID, Path: cleaned}
	l.nextEntryID++
	l.entries = append(l.entries, entry)
	l.byID[entry.ID] = entry
	l.byPath[cleaned] = entry
	l.dirty = true
	return entry, true
}

func (l *Library) EntryByID(id int64) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.byID[id]
	return entry, ok
}

// RemoveEntry drops an entry from the index, e.g. after its file disappeared.
func (l *Library) RemoveEntry(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	delete(l.byPath, entry.Path)
	for i, e := range l.entries {
		if e.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	l.dirty = true
	return true
}

func (l *Library) AddEntryField(entryID int64, name string, fieldType FieldType, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.byID[entryID]
	if !ok {
		return fmt.Errorf("entry %d not found", entryID)
	}
	entry.Fields = append(entry.Fields, Field{Name: name, Type: fieldType, Value: value})
	l.dirty = true
	return nil
}

// UpdateEntryField rewrites the value of the first field with the given name.
func (l *Library) UpdateEntryField(entryID int64, name string, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.byID[entryID]
	if !ok {
		return fmt.Errorf("entry %d not found", entryID)
	}
	for i := range entry.Fields {
		if entry.Fields[i].Name == name {
			entry.Fields[i].Value = value
			l.dirty = true
			return nil
		}
	}
	return fmt.Errorf("entry %d has no %q field", entryID, name)
}

// TagFromStrings resolves tag names to IDs, creating any that do not exist.
// Lookup matches names and aliases case-insensitively.
func (l *Library) TagFromStrings(names []string) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if id, ok := l.findTagLocked(trimmed); ok {
			ids = append(ids, id)
			continue
		}
		tag := Tag{ID: l.nextTagID, Name: trimmed}
		l.nextTagID++
		l.tags = append(l.tags, tag)
		l.dirty = true
		ids = append(ids, tag.ID)
	}
	return ids
}

func (l *Library) findTagLocked(name string) (int64, bool) {
	for _, tag := range l.tags {
		if strings.EqualFold(tag.Name, name) {
			return tag.ID, true
		}
		for _, alias := range tag.Aliases {
			if strings.EqualFold(alias, name) {
				return tag.ID, true
			}
		}
	}
	return 0, false
}

// AddTagToEntry attaches a tag to an entry; a no-op if already present.
func (l *Library) AddTagToEntry(entryID int64, tagID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.byID[entryID]
	if !ok {
		return fmt.Errorf("entry %d not found", entryID)
	}
	if entry.HasTag(tagID) {
		return nil
	}
	entry.Tags = append(entry.Tags, tagID)
	l.dirty = true
	return nil
}

// Save writes the database atomically via a temp file rename.
func (l *Library) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == "" {
		return ErrNotOpen
	}
	db := libraryFile{
		Version: libraryFileVersion,
		Prefs:   l.prefs,
		Tags:    l.tags,
		Entries: l.entries,
	}
	payload, err := toml.Marshal(db)
	if err != nil {
		return fmt.Errorf("marshal library database: %w", err)
	}
	dbPath := filepath.Join(l.dir, metaDirName, dbFileName)
	tmpPath := dbPath + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("write library database: %w", err)
	}
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return fmt.Errorf("replace library database: %w", err)
	}
	l.dirty = false
	return nil
}

// Backup copies the current database into the backups directory and returns
// the created path.
func (l *Library) Backup() (string, error) {
	if !l.IsOpen() {
		return "", ErrNotOpen
	}
	if err := l.Save(); err != nil {
		return "", err
	}

	l.mu.RLock()
	dir := l.dir
	l.mu.RUnlock()

	source := filepath.Join(dir, metaDirName, dbFileName)
	backupDir := filepath.Join(dir, metaDirName, backupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	target := filepath.Join(backupDir, fmt.Sprintf("library-%s.toml", time.Now().UTC().Format("20060102-150405")))
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read library database: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	l.logger.Info("library backup written", logging.Field("path", target))
	return target, nil
}

// Close saves pending changes, releases the directory lock, and detaches.
func (l *Library) Close() error {
	l.mu.Lock()
	if l.dir == "" {
		l.mu.Unlock()
		return nil
	}
	dirty := l.dirty
	lock := l.lock
	l.mu.Unlock()

	var saveErr error
	if dirty {
		saveErr = l.Save()
	}

	l.mu.Lock()
	if lock != nil {
		if err := lock.Unlock(); err != nil && saveErr == nil {
			saveErr = fmt.Errorf("release library lock: %w", err)
		}
	}
	l.dir = ""
	l.lock = nil
	l.entries = nil
	l.byID = nil
	l.byPath = nil
	l.tags = nil
	l.prefs = Prefs{}
	l.dirty = false
	l.mu.Unlock()

	l.logger.Info("library closed")
	return saveErr
}
