package main

import (
	"context"
	"fmt"
	"log"
	goruntime "runtime"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/config"
	"imagery-compare/internal/handlers/tileserver"
	"imagery-compare/internal/maptiles"
	"imagery-compare/internal/source"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// layerEntry tracks one attached imagery layer and its frontend surface.
type layerEntry struct {
	name    string
	layer   *maptiles.TileLayer
	surface *wailsSurface
	remove  func() // error event unsubscribe
}

// App struct
type App struct {
	ctx        context.Context
	settings   *config.UserSettings
	tileCache  *cache.TileCache
	tileServer *tileserver.Server
	phClient   posthog.Client

	mu      sync.Mutex
	layers  map[string]*layerEntry
	devMode bool // Enable verbose logging in dev mode only

	// Whether the frontend map engine needs a forced layout read after
	// clip changes. Reported by the frontend at startup.
	legacyLayoutFlush bool
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize cache with settings
	cacheDir := cache.GetCacheDir()
	tileCache, err := cache.NewTileCache(cacheDir, settings.CacheMemoryTiles, settings.CacheMaxSizeMB, settings.CacheTTLDays)
	if err != nil {
		log.Printf("Failed to initialize tile cache: %v", err)
		tileCache = nil // Continue without cache
	} else {
		log.Printf("Tile cache initialized at %s (max %d MB)", cacheDir, settings.CacheMaxSizeMB)
	}

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings:   settings,
		tileCache:  tileCache,
		tileServer: tileserver.NewServer(tileCache),
		phClient:   phClient,
		layers:     make(map[string]*layerEntry),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	a.tileServer.SetDevMode(a.devMode)
	if err := a.tileServer.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start tile server: %v", err))
	}

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user", // Ideally should be unique per install
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	for name, entry := range a.layers {
		entry.remove()
		entry.layer.Detach()
		a.tileServer.UnregisterLayer(name)
	}
	a.layers = make(map[string]*layerEntry)
	a.mu.Unlock()

	a.tileServer.Stop()
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetTileServerURL returns the local tile server base URL
func (a *App) GetTileServerURL() string {
	return a.tileServer.GetTileServerURL()
}

// ReportEngineCapabilities records frontend map engine quirks. Older engines
// drop clip style changes unless a synchronous layout read follows.
func (a *App) ReportEngineCapabilities(needsLayoutFlush bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.legacyLayoutFlush = needsLayoutFlush
	for _, entry := range a.layers {
		entry.surface.setNeedsLayoutFlush(needsLayoutFlush)
	}
}

// buildSource constructs an imagery source from a custom source definition.
func buildSource(cs config.CustomSource) (maptiles.ImagerySource, error) {
	if err := config.ValidateCustomSource(&cs); err != nil {
		return nil, err
	}

	switch cs.Type {
	case "xyz":
		return source.NewTemplateSource(cs.URL, source.TemplateOptions{
			Subdomains:  cs.Subdomains,
			MinZoom:     cs.MinZoom,
			MaxZoom:     cs.MaxZoom,
			Attribution: cs.Attribution,
		}), nil
	case "wmts":
		return source.NewWMTSSource(cs.URL, cs.LayerID), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cs.Type)
	}
}

// AddImageryLayer creates a tile layer for the given source definition and
// attaches it to the frontend map
func (a *App) AddImageryLayer(cs config.CustomSource) error {
	src, err := buildSource(cs)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.layers[cs.Name]; exists {
		return fmt.Errorf("layer '%s' already attached", cs.Name)
	}

	surface := newWailsSurface(a.ctx, cs.Name, a.legacyLayoutFlush)
	layer := maptiles.NewTileLayer(src, maptiles.Options{})
	remove := layer.ErrorEvent().AddListener(func(v interface{}) {
		cfgErr, ok := v.(*maptiles.ConfigurationError)
		if !ok {
			return
		}
		wailsRuntime.EventsEmit(a.ctx, "layer-error", map[string]interface{}{
			"layer":   cs.Name,
			"message": cfgErr.Error(),
		})
		a.TrackEvent("layer_configuration_error", map[string]interface{}{
			"layer": cs.Name,
			"error": cfgErr.Error(),
		})
	})

	// The server proxies through the layer, not the raw source, so surface
	// zoom is always translated through the reconciled offset.
	a.tileServer.RegisterLayer(cs.Name, layer)
	layer.Attach(surface)

	a.layers[cs.Name] = &layerEntry{
		name:    cs.Name,
		layer:   layer,
		surface: surface,
		remove:  remove,
	}

	log.Printf("[App] layer %s attached (%s)", cs.Name, cs.Type)
	return nil
}

// RemoveImageryLayer detaches a layer and releases its resources
func (a *App) RemoveImageryLayer(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, exists := a.layers[name]
	if !exists {
		return fmt.Errorf("layer '%s' not found", name)
	}

	entry.remove()
	entry.layer.Detach()
	a.tileServer.UnregisterLayer(name)
	delete(a.layers, name)

	log.Printf("[App] layer %s detached", name)
	return nil
}

// ReportViewChanged forwards a map view change to every attached layer
func (a *App) ReportViewChanged(geo maptiles.MapGeometry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, entry := range a.layers {
		entry.layer.Update(geo)
	}
}

// RequestTileURL resolves a tile's image URL for a layer
func (a *App) RequestTileURL(layerName string, tile maptiles.TileCoord) (string, error) {
	a.mu.Lock()
	entry, exists := a.layers[layerName]
	a.mu.Unlock()

	if !exists {
		return "", fmt.Errorf("layer '%s' not found", layerName)
	}
	return entry.layer.TileURL(tile), nil
}

// ReportTileError notifies a layer that one of its tiles failed to load
func (a *App) ReportTileError(layerName string, tile maptiles.TileCoord) error {
	a.mu.Lock()
	entry, exists := a.layers[layerName]
	a.mu.Unlock()

	if !exists {
		return fmt.Errorf("layer '%s' not found", layerName)
	}
	entry.layer.HandleTileError(tile)
	return nil
}

// SetLayerSplitMode sets which side of the splitter a layer renders on
func (a *App) SetLayerSplitMode(layerName, mode string) error {
	m := maptiles.SplitMode(mode)
	if !m.Valid() {
		return fmt.Errorf("invalid split mode: %s", mode)
	}

	a.mu.Lock()
	entry, exists := a.layers[layerName]
	a.mu.Unlock()

	if !exists {
		return fmt.Errorf("layer '%s' not found", layerName)
	}
	entry.layer.SetSplitMode(m)
	return nil
}

// SetSplitPosition moves the splitter for all attached layers
func (a *App) SetSplitPosition(position float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, entry := range a.layers {
		entry.layer.SetSplitPosition(position)
	}
}

// PickFeatures queries imagery features at a geographic position
func (a *App) PickFeatures(layerName string, lon, lat float64, zoom int) ([]maptiles.Feature, error) {
	a.mu.Lock()
	entry, exists := a.layers[layerName]
	a.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("layer '%s' not found", layerName)
	}

	_, features, err := entry.layer.PickFeatures(lon, lat, zoom)
	if err != nil {
		return nil, err
	}
	return features, nil
}

// GetCacheStats returns tile cache statistics
func (a *App) GetCacheStats() (cache.CacheStats, error) {
	if a.tileCache == nil {
		return cache.CacheStats{}, fmt.Errorf("tile cache disabled")
	}
	return a.tileCache.Stats(), nil
}

// ClearCache removes all cached tiles
func (a *App) ClearCache() error {
	if a.tileCache == nil {
		return fmt.Errorf("tile cache disabled")
	}
	return a.tileCache.Clear()
}
