package maptiles

import "time"

// ImagerySource is the abstract imagery collaborator a TileLayer adapts.
// Implementations live in internal/source; tests use in-package fakes.
//
// Ready transitions from false to true exactly once and is polled, never
// pushed. All tile coordinates passed to a source are in the source's own
// zoom space (the layer applies its zoom offset before calling).
type ImagerySource interface {
	Ready() bool
	TilingScheme() TilingScheme

	// MinimumLevel/MaximumLevel report declared zoom bounds, when the
	// source has any.
	MinimumLevel() (int, bool)
	MaximumLevel() (int, bool)

	// Credit is the source's top-level attribution, or nil.
	Credit() *Credit

	// TileCredits returns the attribution for one tile. May be empty.
	TileCredits(col, row, level int) []Credit

	// TileURL resolves the fetch URL for one tile. ok is false when the
	// source has no imagery there.
	TileURL(col, row, level int) (url string, ok bool)

	// PickFeatures queries features at a geographic position within a tile.
	PickFeatures(col, row, level int, lon, lat float64) ([]Feature, error)
}

// RetryDecider is optionally implemented by sources that want failed tile
// loads retried under their own policy. The returned channel delivers nil
// when the layer should retry the tile, or an error when the retry is
// abandoned. A nil channel declines the retry outright.
type RetryDecider interface {
	RetryTile(failure *TileFailure) <-chan error
}

// ReadyPoller is optionally implemented by sources that need a readiness
// poll interval other than the layer default.
type ReadyPoller interface {
	ReadyPollInterval() time.Duration
}

// Feature is one picked imagery feature.
type Feature struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Longitude   float64                `json:"longitude"`
	Latitude    float64                `json:"latitude"`
}

// PixelPoint is a position in map container pixel space.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MapGeometry is a snapshot of the rendering surface's view: zoom, viewport
// size, the container-space pixel corners, and the visible geographic bounds.
type MapGeometry struct {
	Zoom        int        `json:"zoom"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	TopLeft     PixelPoint `json:"topLeft"`
	BottomRight PixelPoint `json:"bottomRight"`
	Bounds      Rectangle  `json:"bounds"`
}

// AttributionView is the shared, externally-owned attribution UI. Both calls
// are idempotent and keyed by representation; other layers may be
// contributing entries to the same view concurrently.
type AttributionView interface {
	AddCredit(html string)
	RemoveCredit(html string)
}

// RenderSurface is the rendering-surface collaborator: tile placement and
// reload, error-tile display, clipping, and request cancellation. The
// concrete implementation in app.go forwards these to the frontend map;
// tests use in-package fakes.
type RenderSurface interface {
	// SetTileURL assigns a tile's image URL. Re-assigning must force a
	// fresh load/error cycle even when the URL is textually unchanged.
	SetTileURL(tile TileCoord, url string)

	// ShowTileError switches a tile to the surface's default error display.
	ShowTileError(tile TileCoord)

	// SetNativeZoomBounds narrows the surface's zoom range to the source's.
	SetNativeZoomBounds(min, max int)

	// SetClip applies a clip rectangle to the tile container; nil clears it.
	SetClip(clip *ClipRect)

	// NeedsLayoutFlush reports whether the surface's engine requires a
	// forced synchronous layout read after toggling the clip style.
	NeedsLayoutFlush() bool
	ForceLayoutFlush()

	// AbortPendingRequests cancels in-flight tile requests on detach.
	AbortPendingRequests()

	Attribution() AttributionView
}
