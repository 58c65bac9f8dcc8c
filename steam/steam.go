// Package steam locates a local Steam installation and the folders where
// Steam keeps library artwork.
package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// EnvVar overrides installation discovery when set
const EnvVar = "STEAM"

// ErrNotFound is returned when no Steam installation can be located
var ErrNotFound = errors.New("could not find Steam installation")

// defaultInstallations lists the usual install roots relative to home, in
// the order they are probed
func defaultInstallations(home string) []string {
	return []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, "Library", "Application Support", "Steam"),
		`C:\Program Files (x86)\Steam`,
	}
}

// FindInstallation returns the Steam root directory. The STEAM environment
// variable wins; otherwise the first existing default location is used.
func FindInstallation() (string, error) {
	if path := os.Getenv(EnvVar); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}

	for _, path := range defaultInstallations(home) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// LibraryCacheDir returns the directory holding the client's cached
// capsule and header artwork
func LibraryCacheDir(root string) string {
	return filepath.Join(root, "appcache", "librarycache")
}

// GridDir returns the custom artwork directory for a Steam user
func GridDir(root, userID string) string {
	return filepath.Join(root, "userdata", userID, "config", "grid")
}

// ListUsers returns the numeric account IDs found under userdata, sorted
func ListUsers(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, "userdata"))
	if err != nil {
		return nil, fmt.Errorf("cannot read Steam userdata: %w", err)
	}

	var users []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// "0" is the anonymous placeholder account
		if id, err := strconv.ParseUint(entry.Name(), 10, 64); err == nil && id != 0 {
			users = append(users, entry.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}
