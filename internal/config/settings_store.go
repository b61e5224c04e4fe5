package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// recentLibraryLimit caps the remembered library list; the newest entry is
// always first and older duplicates of the same path are collapsed.
const recentLibraryLimit = 5

const defaultThumbSizeIndex = 2 // Medium

type Settings struct {
	RecentLibraries []string `json:"recent_libraries"`
	OpenLastOnStart bool     `json:"open_last_on_start"`
	ShowFilenames   bool     `json:"show_filenames"`
	ThumbSizeIndex  int      `json:"thumb_size_index"`
	Debug           bool     `json:"debug"`
}

func DefaultSettings() Settings {
	return Settings{
		OpenLastOnStart: true,
		ShowFilenames:   true,
		ThumbSizeIndex:  defaultThumbSizeIndex,
	}
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "tagdeck", "settings.json"), nil
}

func LoadSettings(path string) (Settings, error) {
	if strings.TrimSpace(path) == "" {
		resolved, err := SettingsPath()
		if err != nil {
			return Settings{}, err
		}
		path = resolved
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(path string, settings Settings) error {
	if strings.TrimSpace(path) == "" {
		resolved, err := SettingsPath()
		if err != nil {
			return err
		}
		path = resolved
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// RememberLibrary records path as the most recently opened library. A path
// already on the list moves to the front instead of duplicating, and anything
// past the limit falls off the end.
func (s *Settings) RememberLibrary(path string) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "" || cleaned == "." {
		return
	}
	next := make([]string, 0, recentLibraryLimit)
	next = append(next, cleaned)
	for _, existing := range s.RecentLibraries {
		if existing == cleaned {
			continue
		}
		next = append(next, existing)
		if len(next) == recentLibraryLimit {
			break
		}
	}
	s.RecentLibraries = next
}

// ForgetLibrary drops path from the recent list, e.g. when it no longer opens.
func (s *Settings) ForgetLibrary(path string) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	next := s.RecentLibraries[:0]
	for _, existing := range s.RecentLibraries {
		if existing != cleaned {
			next = append(next, existing)
		}
	}
	s.RecentLibraries = next
}

// LastLibrary returns the most recently opened library path, if any.
func (s *Settings) LastLibrary() (string, bool) {
	if len(s.RecentLibraries) == 0 {
		return "", false
	}
	return s.RecentLibraries[0], true
}

// MergeOptionsWithSettings applies saved settings for anything the CLI left unset.
func MergeOptionsWithSettings(cli Options, saved Settings) Options {
	if strings.TrimSpace(cli.Library) == "" && saved.OpenLastOnStart {
		if last, ok := saved.LastLibrary(); ok {
			cli.Library = last
		}
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}
