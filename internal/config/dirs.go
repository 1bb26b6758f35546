package config

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the per-user configuration directory.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".razorwire"), nil
}

// EnsureConfigDir returns the per-user configuration directory,
// creating it if needed.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
