// Package maptiles bridges abstract imagery sources onto a slippy-map
// rendering surface: it reconciles tiling schemes, resolves and retries tile
// fetches, keeps the attribution overlay in sync with the visible tile range,
// and computes split-view clip rectangles.
package maptiles

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"
)

const (
	// DefaultPollInterval is how often source readiness is re-checked.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultDebounceDelay coalesces rapid readiness flips during setup
	// before the one-shot scheme reconciliation runs.
	DefaultDebounceDelay = 100 * time.Millisecond

	// maxRenderLevel caps the native zoom bounds when a source declares a
	// minimum level but no maximum.
	maxRenderLevel = 23

	// defaultErrorTileURL is a 1×1 transparent placeholder assigned to
	// tiles that cannot be resolved against the source.
	defaultErrorTileURL = "data:image/gif;base64,R0lGODlhAQABAAAAACH5BAEKAAEALAAAAAABAAEAAAICTAEAOw=="
)

// ErrSourceNotReady is returned by queries that require a ready source.
var ErrSourceNotReady = errors.New("imagery source is not ready")

// ErrLayerUnusable is returned after a fatal configuration error.
var ErrLayerUnusable = errors.New("imagery layer is unusable")

// ConfigurationError is raised on the layer's error event for fatal,
// non-retried problems such as an unsupported tiling scheme.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Options tune a TileLayer. Zero values fall back to defaults.
type Options struct {
	PollInterval  time.Duration
	DebounceDelay time.Duration
	ErrorTileURL  string
}

// TileLayer adapts one ImagerySource to a RenderSurface. It becomes usable
// once the source reports ready and its tiling scheme is reconciled, and is
// torn down by Detach.
type TileLayer struct {
	mu      sync.Mutex
	source  ImagerySource
	surface RenderSurface

	pollInterval time.Duration
	errorTileURL string
	debounced    func(func())

	errorEvent *Event

	// zSubtract translates surface zoom levels into source levels. Surface
	// zoom minus zSubtract is always what the source is queried with.
	zSubtract int

	usable   bool
	dead     bool
	detached bool

	pollTimer   *time.Timer
	updateTimer *time.Timer

	failure     *TileFailure
	attribution *attributionTracker

	splitMode     SplitMode
	splitPosition float64

	geometry    MapGeometry
	hasGeometry bool

	topCredit string
}

// NewTileLayer creates a layer for the given source. The layer does nothing
// until Attach.
func NewTileLayer(src ImagerySource, opts Options) *TileLayer {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if rp, ok := src.(ReadyPoller); ok {
		if iv := rp.ReadyPollInterval(); iv > 0 {
			poll = iv
		}
	}

	delay := opts.DebounceDelay
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}

	errURL := opts.ErrorTileURL
	if errURL == "" {
		errURL = defaultErrorTileURL
	}

	return &TileLayer{
		source:        src,
		pollInterval:  poll,
		errorTileURL:  errURL,
		debounced:     debounce.New(delay),
		errorEvent:    NewEvent(),
		splitMode:     SplitNone,
		splitPosition: 0.5,
	}
}

// ErrorEvent delivers fatal configuration errors (*ConfigurationError).
func (l *TileLayer) ErrorEvent() *Event {
	return l.errorEvent
}

// Usable reports whether the layer has been reconciled and can render tiles.
func (l *TileLayer) Usable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usable
}

// ZoomOffset returns the reconciled zoom-level offset.
func (l *TileLayer) ZoomOffset() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zSubtract
}

// Attach binds the layer to a rendering surface and starts readiness polling.
func (l *TileLayer) Attach(surface RenderSurface) {
	l.mu.Lock()
	l.surface = surface
	l.detached = false
	l.attribution = newAttributionTracker(surface.Attribution())
	l.mu.Unlock()

	l.pollReadiness()
}

// pollReadiness re-arms itself at the poll interval until the source reports
// ready, then hands off to the debounced initializer. There is no timeout:
// a source that never becomes ready is polled forever without error.
func (l *TileLayer) pollReadiness() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached || l.dead || l.usable {
		return
	}

	if !l.source.Ready() {
		l.pollTimer = time.AfterFunc(l.pollInterval, l.pollReadiness)
		return
	}

	l.debounced(l.initialize)
}

// initialize runs the one-shot tiling scheme reconciliation. A root grid of
// exactly 1×1 maps to offset 0 and 2×2 to offset 1; any other shape is a
// terminal condition.
func (l *TileLayer) initialize() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached || l.dead || l.usable {
		return
	}

	scheme := l.source.TilingScheme()
	cols, rows := scheme.TileCount(0)
	switch {
	case cols == 1 && rows == 1:
		l.zSubtract = 0
	case cols == 2 && rows == 2:
		l.zSubtract = 1
	default:
		l.dead = true
		err := &ConfigurationError{
			Message: fmt.Sprintf("unsupported tiling scheme: root grid is %d×%d, expected 1×1 or 2×2", cols, rows),
		}
		log.Printf("[TileLayer] %v", err)
		l.mu.Unlock()
		l.errorEvent.Raise(err)
		l.mu.Lock()
		return
	}

	min, minOK := l.source.MinimumLevel()
	max, maxOK := l.source.MaximumLevel()
	if minOK || maxOK {
		if !maxOK {
			max = maxRenderLevel
		}
		if !minOK {
			min = 0
		}
		l.surface.SetNativeZoomBounds(min, max)
	}

	if c := l.source.Credit(); c != nil {
		l.surface.Attribution().AddCredit(c.HTML)
		l.topCredit = c.HTML
	}

	l.usable = true
	log.Printf("[TileLayer] source ready, zoom offset %d", l.zSubtract)

	if l.hasGeometry {
		l.refreshLocked()
	}
}

// Update is invoked by the surface on every refresh or view change. While the
// layer is not yet usable the update is deferred through a re-armed timer
// instead of failing.
func (l *TileLayer) Update(geo MapGeometry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached || l.dead {
		return
	}

	l.geometry = geo
	l.hasGeometry = true

	if !l.usable {
		l.scheduleDeferredUpdateLocked()
		return
	}

	l.refreshLocked()
}

// scheduleDeferredUpdateLocked re-arms the single delayed-update timer. Only
// one timer is ever pending; each scheduling call replaces the previous one.
func (l *TileLayer) scheduleDeferredUpdateLocked() {
	if l.updateTimer != nil {
		l.updateTimer.Stop()
	}
	l.updateTimer = time.AfterFunc(l.pollInterval, func() {
		l.mu.Lock()
		if l.detached || l.dead || !l.hasGeometry {
			l.mu.Unlock()
			return
		}
		geo := l.geometry
		l.mu.Unlock()
		l.Update(geo)
	})
}

// refreshLocked runs one synchronous refresh cycle: attribution diffing for
// the visible range, then the split clip. Cycles never overlap.
func (l *TileLayer) refreshLocked() {
	level := l.geometry.Zoom - l.zSubtract
	if level >= 0 {
		l.attribution.Update(l.source, l.source.TilingScheme(), l.geometry.Bounds, level)
	}
	applySplitClip(l.surface, l.geometry, l.splitMode, l.splitPosition)
}

// SetSplitMode changes the split mode and synchronously recomputes the clip.
func (l *TileLayer) SetSplitMode(mode SplitMode) {
	if !mode.Valid() {
		mode = SplitNone
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.splitMode = mode
	if l.surface != nil && !l.detached && l.hasGeometry {
		applySplitClip(l.surface, l.geometry, l.splitMode, l.splitPosition)
	}
}

// SetSplitPosition changes the split position fraction, clamped to [0,1], and
// synchronously recomputes the clip.
func (l *TileLayer) SetSplitPosition(position float64) {
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.splitPosition = position
	if l.surface != nil && !l.detached && l.hasGeometry {
		applySplitClip(l.surface, l.geometry, l.splitMode, l.splitPosition)
	}
}

// SplitMode returns the current split mode.
func (l *TileLayer) SplitMode() SplitMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splitMode
}

// SplitPosition returns the current split position fraction.
func (l *TileLayer) SplitPosition() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splitPosition
}

// PickFeatures resolves a geographic position at a surface zoom level to a
// tile coordinate and queries the source for features there. Gated on source
// readiness.
func (l *TileLayer) PickFeatures(lon, lat float64, zoom int) (TileCoord, []Feature, error) {
	l.mu.Lock()
	if l.dead {
		l.mu.Unlock()
		return TileCoord{}, nil, ErrLayerUnusable
	}
	src := l.source
	offset := l.zSubtract
	l.mu.Unlock()

	if !src.Ready() {
		return TileCoord{}, nil, ErrSourceNotReady
	}

	level := zoom - offset
	if level < 0 {
		return TileCoord{}, nil, fmt.Errorf("zoom level %d is below the source's range", zoom)
	}

	tile := TileAtOrEdge(src.TilingScheme(), lon, lat, level)
	features, err := src.PickFeatures(tile.Column, tile.Row, level, lon, lat)
	if err != nil {
		return tile, nil, fmt.Errorf("pick features at %d/%d/%d: %w", tile.Column, tile.Row, level, err)
	}
	return tile, features, nil
}

// Detach tears the layer down: timers are cleared, in-flight tile requests
// aborted, and every attribution entry rolled back. A retry already in
// flight completes as a no-op.
func (l *TileLayer) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.detached {
		return
	}
	l.detached = true

	if l.pollTimer != nil {
		l.pollTimer.Stop()
		l.pollTimer = nil
	}
	if l.updateTimer != nil {
		l.updateTimer.Stop()
		l.updateTimer = nil
	}

	if l.surface == nil {
		return
	}

	l.surface.AbortPendingRequests()

	if l.attribution != nil {
		l.attribution.Clear()
	}
	if l.topCredit != "" {
		l.surface.Attribution().RemoveCredit(l.topCredit)
		l.topCredit = ""
	}

	l.surface = nil
	l.usable = false
}
