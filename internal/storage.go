package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

var prefsPath = filepath.Join(os.Getenv("HOME"), ".blueterm", "config.toml")

// Preferences are the small user settings kept between runs. Resource data
// is never written here.
type Preferences struct {
	Theme              string `toml:"theme"`
	AutoRefreshEnabled bool   `toml:"auto_refresh_enabled"`
	LastRegion         string `toml:"last_region,omitempty"`
	LastFamily         string `toml:"last_family,omitempty"`
}

// DefaultPreferences are used when no file exists.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:              "ibm",
		AutoRefreshEnabled: true,
	}
}

// PreferencesPath returns the preference file location.
func PreferencesPath() string {
	return prefsPath
}

// LoadPreferences reads the preference file. A missing file yields the
// defaults; an unreadable one yields the defaults plus the error.
func LoadPreferences() (Preferences, error) {
	prefs := DefaultPreferences()

	b, err := os.ReadFile(prefsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("failed to read preferences: %w", err)
	}

	if err := toml.Unmarshal(b, &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("failed to parse preferences: %w", err)
	}
	if prefs.Theme == "" {
		prefs.Theme = DefaultPreferences().Theme
	}
	return prefs, nil
}

// SavePreferences writes prefs atomically.
func SavePreferences(prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(prefsPath), 0700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	b, err := toml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	tmp := prefsPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, prefsPath)
}

// UpdatePreferences loads, mutates and saves the preferences.
func UpdatePreferences(fn func(*Preferences)) error {
	prefs, err := LoadPreferences()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// Unparseable files are replaced with the update applied to defaults.
		prefs = DefaultPreferences()
	}
	fn(&prefs)
	return SavePreferences(prefs)
}
