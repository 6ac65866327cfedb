package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".strobe"

// DataDir returns the base data directory for the daemon's persisted
// state (event store database, baselines).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// EventStorePath returns the path to the bbolt-backed event store
// under dataDir.
func EventStorePath(dataDir string) string {
	return filepath.Join(dataDir, "events.db")
}

// GlobalSettingsPath returns the path to the user-global settings file
// under dataDir.
func GlobalSettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

// ProjectSettingsPath returns the path to a project-local settings
// file given the project root.
func ProjectSettingsPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".strobe", "settings.json")
}

// DaemonConfigPath returns the path to the daemon's own TOML
// configuration (bind address, data dir override) — an ambient
// operational concern distinct from the JSON settings.json keys.
func DaemonConfigPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "daemon.toml"), nil
}

// DetailsDir returns the well-known temp directory test run details
// files are written under.
func DetailsDir() string {
	return filepath.Join(os.TempDir(), "strobe", "tests")
}
