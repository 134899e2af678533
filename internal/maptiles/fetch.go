package maptiles

import (
	"fmt"
	"log"
)

// ResolveTileURL resolves the upstream fetch URL for a tile requested at a
// surface zoom level. The level is translated through the reconciled offset
// before the source is consulted; a negative translated level reports not-ok
// without a source query, as does an unreconciled layer. Every consumer of
// surface tile coordinates resolves through here, never against the source
// directly.
func (l *TileLayer) ResolveTileURL(tile TileCoord) (string, bool) {
	l.mu.Lock()
	src := l.source
	offset := l.zSubtract
	usable := l.usable
	l.mu.Unlock()

	if !usable {
		return "", false
	}

	level := tile.Level - offset
	if level < 0 {
		return "", false
	}

	return src.TileURL(tile.Column, tile.Row, level)
}

// TileURL resolves a tile like ResolveTileURL but substitutes the error
// placeholder for any tile that cannot be resolved.
func (l *TileLayer) TileURL(tile TileCoord) string {
	if url, ok := l.ResolveTileURL(tile); ok {
		return url
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorTileURL
}

// HandleTileError is invoked by the surface when a tile's image element fails
// to load. Repeated failures at the same coordinate are correlated through
// the layer's single pending failure handle; whether to retry is the
// source's call. A granted retry re-sets the tile URL to force a fresh
// load/error cycle, a declined or failed one falls back to the surface's
// default error-tile display.
func (l *TileLayer) HandleTileError(tile TileCoord) {
	l.mu.Lock()
	if l.detached || l.dead {
		l.mu.Unlock()
		return
	}
	src := l.source
	offset := l.zSubtract
	l.mu.Unlock()

	msg := fmt.Sprintf("failed to load tile %d,%d at level %d", tile.Column, tile.Row, tile.Level-offset)

	retry := func() {
		l.mu.Lock()
		surface := l.surface
		detached := l.detached
		l.mu.Unlock()
		if detached || surface == nil {
			return
		}
		log.Printf("[TileLayer] retrying tile %d/%d/%d", tile.Column, tile.Row, tile.Level)
		surface.SetTileURL(tile, l.TileURL(tile))
	}

	fallback := func() {
		l.mu.Lock()
		surface := l.surface
		detached := l.detached
		l.mu.Unlock()
		if detached || surface == nil {
			return
		}
		surface.ShowTileError(tile)
	}

	l.mu.Lock()
	prev := l.failure
	l.mu.Unlock()

	// The fallback may run synchronously, so the handle is swapped outside
	// the lock.
	next := handleTileFailure(prev, src, msg, tile, retry, fallback)

	l.mu.Lock()
	l.failure = next
	l.mu.Unlock()
}
