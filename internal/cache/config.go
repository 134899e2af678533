package cache

import (
	"os"
	"path/filepath"
	goruntime "runtime"
)

// Config represents cache configuration.
type Config struct {
	MemoryTiles int `json:"memoryTiles"`
	MaxSizeMB   int `json:"maxSizeMB"`
	TTLDays     int `json:"ttlDays"`
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		MemoryTiles: 512,
		MaxSizeMB:   250,
		TTLDays:     30,
	}
}

// GetCacheDir returns the OS-specific cache directory.
func GetCacheDir() string {
	homeDir, _ := os.UserHomeDir()

	switch goruntime.GOOS {
	case "darwin": // macOS
		return filepath.Join(homeDir, "Library", "Caches", "imagery-compare", "tiles")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, "imagery-compare", "cache", "tiles")
	default: // Linux and others
		cacheHome := os.Getenv("XDG_CACHE_HOME")
		if cacheHome == "" {
			cacheHome = filepath.Join(homeDir, ".cache")
		}
		return filepath.Join(cacheHome, "imagery-compare", "tiles")
	}
}
