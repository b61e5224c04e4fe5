package config

import (
	"errors"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	Library      string `long:"library" env:"TAGDECK_LIBRARY" description:"Library directory to open on startup"`
	SettingsFile string `long:"settings-file" env:"TAGDECK_SETTINGS_FILE" description:"Path to an alternate settings file"`
	PageSize     int    `long:"page-size" env:"TAGDECK_PAGE_SIZE" description:"Override the library's configured page size"`
	Debug        bool   `long:"debug" env:"TAGDECK_DEBUG" description:"Enable verbose debug output"`
}

func ParseOptions() (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ValidateLibraryPath checks that an explicitly requested library directory
// exists before the driver tries to open it.
func ValidateLibraryPath(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("library path is empty")
	}
	info, err := os.Stat(trimmed)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("library path is not a directory")
	}
	return nil
}
