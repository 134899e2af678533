package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CustomSource represents a user-added imagery source
type CustomSource struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "wmts" or "xyz"
	URL         string   `json:"url"`
	LayerID     string   `json:"layerId,omitempty"` // WMTS layer identifier
	Subdomains  []string `json:"subdomains,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
	MaxZoom     int      `json:"maxZoom,omitempty"`
	MinZoom     int      `json:"minZoom,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Cache settings
	CacheMemoryTiles int `json:"cacheMemoryTiles"`
	CacheMaxSizeMB   int `json:"cacheMaxSizeMB"`
	CacheTTLDays     int `json:"cacheTTLDays"`

	// Default map settings
	DefaultZoom      int     `json:"defaultZoom"`
	DefaultSource    string  `json:"defaultSource"`
	DefaultCenterLat float64 `json:"defaultCenterLat"`
	DefaultCenterLon float64 `json:"defaultCenterLon"`

	// Split-view comparison settings
	SplitMode     string  `json:"splitMode"` // "none", "left", "right"
	SplitPosition float64 `json:"splitPosition"`

	// Custom imagery sources
	CustomSources []CustomSource `json:"customSources"`

	// UI preferences
	Theme           string `json:"theme"` // "light", "dark", "system"
	ShowTileGrid    bool   `json:"showTileGrid"`
	ShowCoordinates bool   `json:"showCoordinates"`
	ShowAttribution bool   `json:"showAttribution"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		CacheMemoryTiles: 512,
		CacheMaxSizeMB:   250,
		CacheTTLDays:     30,
		DefaultZoom:      10,
		DefaultSource:    "osm",
		DefaultCenterLat: 30.0444, // Cairo, Egypt
		DefaultCenterLon: 31.2357,
		SplitMode:        "none",
		SplitPosition:    0.5,
		CustomSources:    []CustomSource{},
		Theme:            "system",
		ShowTileGrid:     false,
		ShowCoordinates:  false,
		ShowAttribution:  true,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	baseDir := filepath.Join(homeDir, ".imagery-compare", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.CacheMemoryTiles == 0 {
		settings.CacheMemoryTiles = defaults.CacheMemoryTiles
	}
	if settings.CacheMaxSizeMB == 0 {
		settings.CacheMaxSizeMB = defaults.CacheMaxSizeMB
	}
	if settings.CacheTTLDays == 0 {
		settings.CacheTTLDays = defaults.CacheTTLDays
	}
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.DefaultSource == "" {
		settings.DefaultSource = defaults.DefaultSource
	}
	if settings.SplitMode == "" {
		settings.SplitMode = defaults.SplitMode
	}
	if settings.SplitPosition == 0 {
		settings.SplitPosition = defaults.SplitPosition
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateCustomSource validates a custom source configuration
func ValidateCustomSource(source *CustomSource) error {
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if source.Type == "" {
		return fmt.Errorf("source type is required")
	}

	validTypes := map[string]bool{
		"wmts": true,
		"xyz":  true,
	}
	if !validTypes[source.Type] {
		return fmt.Errorf("invalid source type: %s (must be wmts or xyz)", source.Type)
	}

	return nil
}
