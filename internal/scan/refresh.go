// Package scan keeps a library directory and its index in sync: a
// recursive walk picks up unindexed files, and a watcher turns filesystem
// churn into coalesced refresh triggers.
package scan

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"tagdeck/internal/library"
	"tagdeck/internal/logging"
)

const progressInterval = 250

// Indexer is the library surface a refresh walk feeds.
type Indexer interface {
	Dir() string
	AddEntry(relPath string) (*library.Entry, bool)
}

// skipFile filters out metadata and sidecar files that never become
// entries.
func skipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// Refresh walks the library directory and indexes files not yet known to
// the library. It reports (scanned, added) through onProgress every few
// hundred files and returns the number of entries added.
func Refresh(ctx context.Context, logger *logging.Logger, lib Indexer, onProgress func(scanned, added int)) (int, error) {
	if logger == nil {
		panic("scan.Refresh: logger must not be nil")
	}
	root := lib.Dir()
	scanned, added := 0, 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("refresh walk error", logging.Field("path", path), logging.Field("error", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if skipFile(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		scanned++
		if _, ok := lib.AddEntry(filepath.ToSlash(rel)); ok {
			added++
		}
		if onProgress != nil && scanned%progressInterval == 0 {
			onProgress(scanned, added)
		}
		return nil
	})

	if onProgress != nil {
		onProgress(scanned, added)
	}
	if err != nil {
		return added, err
	}
	logger.Debug("directory refresh finished",
		logging.Field("scanned", scanned),
		logging.Field("added", added),
	)
	return added, nil
}
