// Package xdg resolves XDG Base Directory paths for compilerd.
// It follows the XDG Base Directory specification for configuration and state
// locations, falling back to the traditional home-relative directories when the
// XDG environment variables are not set.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "compilerd"

// ConfigDir returns the XDG config directory for compilerd.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/compilerd when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return ensure("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for compilerd.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/compilerd when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return ensure("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile returns the default configuration file path. The file may not exist.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func ensure(envVar, homeRel string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeRel)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
