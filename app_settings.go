package main

import (
	"fmt"
	"log"

	"imagery-compare/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Validate settings
	if settings.CacheMaxSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if settings.CacheTTLDays <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if settings.SplitPosition < 0 || settings.SplitPosition > 1 {
		return fmt.Errorf("split position must be between 0 and 1")
	}

	// Save to disk
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	// Update app state
	a.settings = settings

	// Note: Cache settings require app restart to take effect
	log.Printf("Settings saved. Cache settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SaveSplitSettings persists the current split-view configuration
func (a *App) SaveSplitSettings(mode string, position float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if position < 0 || position > 1 {
		return fmt.Errorf("split position must be between 0 and 1")
	}

	a.settings.SplitMode = mode
	a.settings.SplitPosition = position

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Saved split settings: mode=%s, position=%.2f", mode, position)
	return nil
}

// SaveMapPosition saves the current map position for session persistence
// Called on app close or periodically to remember the last viewed location
func (a *App) SaveMapPosition(lat, lon float64, zoom int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings.DefaultCenterLat = lat
	a.settings.DefaultCenterLon = lon
	a.settings.DefaultZoom = zoom

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Saved map position: lat=%.6f, lon=%.6f, zoom=%d", lat, lon, zoom)
	return nil
}

// ===================
// Custom Sources
// ===================

// AddCustomSource adds a new custom imagery source
func (a *App) AddCustomSource(source config.CustomSource) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Validate source
	if err := config.ValidateCustomSource(&source); err != nil {
		return err
	}

	// Check for duplicate names
	for _, existing := range a.settings.CustomSources {
		if existing.Name == source.Name {
			return fmt.Errorf("source with name '%s' already exists", source.Name)
		}
	}

	// Add to settings
	a.settings.CustomSources = append(a.settings.CustomSources, source)

	// Save settings
	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Added custom source: %s (%s)", source.Name, source.Type)
	return nil
}

// RemoveCustomSource removes a custom imagery source by name
func (a *App) RemoveCustomSource(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Find and remove source
	found := false
	newSources := make([]config.CustomSource, 0)
	for _, source := range a.settings.CustomSources {
		if source.Name != name {
			newSources = append(newSources, source)
		} else {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("source '%s' not found", name)
	}

	a.settings.CustomSources = newSources

	// Save settings
	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Removed custom source: %s", name)
	return nil
}

// UpdateCustomSource updates an existing custom source
func (a *App) UpdateCustomSource(name string, source config.CustomSource) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Validate source
	if err := config.ValidateCustomSource(&source); err != nil {
		return err
	}

	// Find and update source
	found := false
	for i, existing := range a.settings.CustomSources {
		if existing.Name == name {
			a.settings.CustomSources[i] = source
			found = true
			break
		}
	}

	if !found {
		return fmt.Errorf("source '%s' not found", name)
	}

	// Save settings
	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Updated custom source: %s", name)
	return nil
}
