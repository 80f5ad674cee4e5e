package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "WIFISCOUT_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "wifiscout.yaml"
	// ConfigDirName is the directory under XDG, ~/.config and /etc
	ConfigDirName = "wifiscout"
)

// SearchPaths lists the config locations in priority order: $WIFISCOUT_CONFIG,
// ./wifiscout.yaml, $XDG_CONFIG_HOME/wifiscout/config.yaml,
// ~/.config/wifiscout/config.yaml, /etc/wifiscout/config.yaml.
// Unset variables contribute no entry.
func SearchPaths(getenv func(string) string) []string {
	var paths []string
	if p := getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing entry of SearchPaths, made
// absolute, or "" when there is none
func FindConfigPath() string {
	for _, p := range SearchPaths(os.Getenv) {
		if !fileExists(p) {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

// EnsureConfigDir creates the directory that will hold configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
