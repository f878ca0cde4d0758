package config

import (
	"os"
	"path/filepath"
)

// UserHomeDir is a variable to allow overriding in tests.
var UserHomeDir = os.UserHomeDir

// ResolveDataDir returns the directory for the database and exports.
// Resolution order (first match wins):
// 1. configured (storage.dataDir, --data-dir or DEEPAGENT_STORAGE_DATADIR)
// 2. ./.deepagent if it exists
// 3. $XDG_DATA_HOME/deepagent
// 4. ~/.deepagent
func ResolveDataDir(configured string) string {
	if configured != "" {
		return configured
	}
	if info, err := os.Stat(DataDirName); err == nil && info.IsDir() {
		return DataDirName
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "deepagent")
	}
	home, err := UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}
