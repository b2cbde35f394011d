package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	LogDir       string
}

// GetDefaultStoragePaths returns default storage paths using XDG base
// directories. State data (the conversation database, logs) lives under
// XDG_STATE_HOME.
func GetDefaultStoragePaths() StoragePaths {
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, "parley", "parley.db"),
		LogDir:       filepath.Join(xdg.StateHome, "parley", "logs"),
	}
}

// GetDefaultConfigPath returns the default config file location under
// XDG_CONFIG_HOME.
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "parley", "config.yaml")
}
