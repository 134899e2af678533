package main

import (
	"context"
	"sync"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-compare/internal/maptiles"
)

// wailsSurface forwards rendering-surface calls to the frontend map as Wails
// events. Each attached layer gets its own surface, keyed by layer name so
// the frontend can route events to the right pane.
type wailsSurface struct {
	ctx   context.Context
	layer string

	mu         sync.Mutex
	needsFlush bool
}

func newWailsSurface(ctx context.Context, layer string, needsFlush bool) *wailsSurface {
	return &wailsSurface{
		ctx:        ctx,
		layer:      layer,
		needsFlush: needsFlush,
	}
}

func (s *wailsSurface) setNeedsLayoutFlush(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsFlush = v
}

func (s *wailsSurface) emit(event string, data map[string]interface{}) {
	data["layer"] = s.layer
	wailsRuntime.EventsEmit(s.ctx, event, data)
}

func (s *wailsSurface) SetTileURL(tile maptiles.TileCoord, url string) {
	s.emit("tile-set-url", map[string]interface{}{
		"tile": tile,
		"url":  url,
	})
}

func (s *wailsSurface) ShowTileError(tile maptiles.TileCoord) {
	s.emit("tile-error-display", map[string]interface{}{
		"tile": tile,
	})
}

func (s *wailsSurface) SetNativeZoomBounds(min, max int) {
	s.emit("zoom-bounds", map[string]interface{}{
		"minZoom": min,
		"maxZoom": max,
	})
}

func (s *wailsSurface) SetClip(clip *maptiles.ClipRect) {
	s.emit("clip-changed", map[string]interface{}{
		"clip": clip, // nil clears the clip
	})
}

func (s *wailsSurface) NeedsLayoutFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsFlush
}

func (s *wailsSurface) ForceLayoutFlush() {
	s.emit("force-layout-flush", map[string]interface{}{})
}

func (s *wailsSurface) AbortPendingRequests() {
	s.emit("abort-requests", map[string]interface{}{})
}

func (s *wailsSurface) Attribution() maptiles.AttributionView {
	return &wailsAttribution{surface: s}
}

// wailsAttribution forwards attribution changes to the shared credit bar.
type wailsAttribution struct {
	surface *wailsSurface
}

func (a *wailsAttribution) AddCredit(html string) {
	a.surface.emit("attribution-add", map[string]interface{}{
		"html": html,
	})
}

func (a *wailsAttribution) RemoveCredit(html string) {
	a.surface.emit("attribution-remove", map[string]interface{}{
		"html": html,
	})
}
