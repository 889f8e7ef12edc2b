package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the config directory for Deskpilot.
// Order: XDG_CONFIG_HOME/deskpilot, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "deskpilot")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Deskpilot")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deskpilot")
}

// DataDir returns the data directory for Deskpilot.
// Order: XDG_DATA_HOME/deskpilot, platform-specific fallback.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "deskpilot")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Deskpilot")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "deskpilot")
}
