package maptiles

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// usableLayer attaches a layer to a fresh fake surface and waits for it to
// become usable.
func usableLayer(t *testing.T, src ImagerySource) (*TileLayer, *fakeSurface) {
	t.Helper()
	layer := NewTileLayer(src, fastOptions())
	surface := newFakeSurface()
	layer.Attach(surface)
	t.Cleanup(layer.Detach)
	if !waitFor(time.Second, layer.Usable) {
		t.Fatal("layer never became usable")
	}
	return layer, surface
}

func TestTileURLNegativeLevelUsesPlaceholder(t *testing.T) {
	src := newFakeSource(&WebMercatorTilingScheme{RootTilesX: 2, RootTilesY: 2})
	src.tileURL = func(col, row, level int) (string, bool) {
		return fmt.Sprintf("https://tiles.example.com/%d/%d/%d.png", level, col, row), true
	}
	layer, _ := usableLayer(t, src)

	url := layer.TileURL(TileCoord{Column: 0, Row: 0, Level: 0})
	if url != defaultErrorTileURL {
		t.Errorf("level below source range: got %q, want placeholder", url)
	}

	src.mu.Lock()
	calls := src.urlCalls
	src.mu.Unlock()
	if calls != 0 {
		t.Errorf("source queried %d times for a negative level, want 0", calls)
	}
}

func TestTileURLAppliesZoomOffset(t *testing.T) {
	src := newFakeSource(&WebMercatorTilingScheme{RootTilesX: 2, RootTilesY: 2})
	src.tileURL = func(col, row, level int) (string, bool) {
		return fmt.Sprintf("https://tiles.example.com/%d/%d/%d.png", level, col, row), true
	}
	layer, _ := usableLayer(t, src)

	url := layer.TileURL(TileCoord{Column: 3, Row: 2, Level: 5})
	want := "https://tiles.example.com/4/3/2.png"
	if url != want {
		t.Errorf("tile URL: got %q, want %q", url, want)
	}
}

func TestTileURLUnresolvedFallsBackToPlaceholder(t *testing.T) {
	src := newFakeSource(NewWebMercatorTilingScheme())
	src.tileURL = func(col, row, level int) (string, bool) { return "", false }
	layer, _ := usableLayer(t, src)

	if url := layer.TileURL(TileCoord{Column: 0, Row: 0, Level: 0}); url != defaultErrorTileURL {
		t.Errorf("unresolved tile: got %q, want placeholder", url)
	}
}

func TestResolveTileURLAppliesZoomOffset(t *testing.T) {
	src := newFakeSource(&WebMercatorTilingScheme{RootTilesX: 2, RootTilesY: 2})
	src.tileURL = func(col, row, level int) (string, bool) {
		return fmt.Sprintf("https://tiles.example.com/%d/%d/%d.png", level, col, row), true
	}
	layer, _ := usableLayer(t, src)

	url, ok := layer.ResolveTileURL(TileCoord{Column: 3, Row: 2, Level: 5})
	if !ok {
		t.Fatal("tile did not resolve")
	}
	if want := "https://tiles.example.com/4/3/2.png"; url != want {
		t.Errorf("resolved URL: got %q, want %q", url, want)
	}

	if _, ok := layer.ResolveTileURL(TileCoord{Column: 0, Row: 0, Level: 0}); ok {
		t.Error("negative translated level resolved")
	}
}

func TestResolveTileURLBeforeReconciliation(t *testing.T) {
	src := newFakeSource(NewWebMercatorTilingScheme())
	src.setReady(false)
	src.tileURL = func(col, row, level int) (string, bool) {
		return "https://tiles.example.com/t.png", true
	}

	layer := NewTileLayer(src, fastOptions())
	layer.Attach(newFakeSurface())
	t.Cleanup(layer.Detach)

	if _, ok := layer.ResolveTileURL(TileCoord{Column: 0, Row: 0, Level: 1}); ok {
		t.Error("unreconciled layer resolved a tile")
	}
	src.mu.Lock()
	calls := src.urlCalls
	src.mu.Unlock()
	if calls != 0 {
		t.Errorf("source queried %d times before reconciliation, want 0", calls)
	}
}

func TestRetryGrantedOnceThenFallback(t *testing.T) {
	base := newFakeSource(NewWebMercatorTilingScheme())
	base.tileURL = func(col, row, level int) (string, bool) {
		return "https://tiles.example.com/t.png", true
	}

	var handles []*TileFailure
	src := &retrySource{fakeSource: base}
	src.retryTile = func(f *TileFailure) <-chan error {
		handles = append(handles, &TileFailure{ID: f.ID, Tile: f.Tile, Attempts: f.Attempts})
		if f.Attempts > 1 {
			return nil // retries exhausted
		}
		ch := make(chan error, 1)
		ch <- nil
		return ch
	}

	layer, surface := usableLayer(t, src)
	tile := TileCoord{Column: 1, Row: 1, Level: 3}

	// First failure: the source grants one retry, which must re-set the
	// tile URL for a second load attempt.
	layer.HandleTileError(tile)
	if !waitFor(time.Second, func() bool { return surface.tileURLCount() == 1 }) {
		t.Fatal("granted retry did not re-set the tile URL")
	}
	if surface.errorTileCount() != 0 {
		t.Fatal("error tile shown while a retry was pending")
	}

	// Second failure: retry declined, fall back to default error display.
	layer.HandleTileError(tile)
	if !waitFor(time.Second, func() bool { return surface.errorTileCount() == 1 }) {
		t.Fatal("exhausted retry did not fall back to the error display")
	}
	if surface.tileURLCount() != 1 {
		t.Errorf("tile URL re-set %d times, want exactly 1", surface.tileURLCount())
	}

	// Both failures correlate to the same handle.
	if len(handles) != 2 {
		t.Fatalf("retry policy consulted %d times, want 2", len(handles))
	}
	if handles[0].ID != handles[1].ID {
		t.Error("repeated failures at one coordinate produced distinct handles")
	}
	if handles[0].Attempts != 1 || handles[1].Attempts != 2 {
		t.Errorf("attempt counts: got %d,%d, want 1,2", handles[0].Attempts, handles[1].Attempts)
	}
}

func TestFailureAtNewCoordinateReplacesHandle(t *testing.T) {
	base := newFakeSource(NewWebMercatorTilingScheme())
	var handles []*TileFailure
	src := &retrySource{fakeSource: base}
	src.retryTile = func(f *TileFailure) <-chan error {
		handles = append(handles, &TileFailure{ID: f.ID, Attempts: f.Attempts})
		return nil
	}

	layer, _ := usableLayer(t, src)

	layer.HandleTileError(TileCoord{Column: 0, Row: 0, Level: 2})
	layer.HandleTileError(TileCoord{Column: 1, Row: 0, Level: 2})

	if len(handles) != 2 {
		t.Fatalf("retry policy consulted %d times, want 2", len(handles))
	}
	if handles[0].ID == handles[1].ID {
		t.Error("failures at different coordinates shared a handle")
	}
	if handles[1].Attempts != 1 {
		t.Errorf("replacement handle attempts: got %d, want 1", handles[1].Attempts)
	}
}

func TestRetryWaitFailureFallsBack(t *testing.T) {
	base := newFakeSource(NewWebMercatorTilingScheme())
	src := &retrySource{fakeSource: base}
	src.retryTile = func(f *TileFailure) <-chan error {
		ch := make(chan error, 1)
		ch <- errors.New("retry abandoned")
		return ch
	}

	layer, surface := usableLayer(t, src)
	layer.HandleTileError(TileCoord{Column: 0, Row: 0, Level: 2})

	if !waitFor(time.Second, func() bool { return surface.errorTileCount() == 1 }) {
		t.Fatal("failed retry wait did not fall back to the error display")
	}
	if surface.tileURLCount() != 0 {
		t.Error("tile URL re-set despite failed retry wait")
	}
}

func TestRetryCompletionAfterDetachIsNoop(t *testing.T) {
	base := newFakeSource(NewWebMercatorTilingScheme())
	release := make(chan error)
	src := &retrySource{fakeSource: base}
	src.retryTile = func(f *TileFailure) <-chan error { return release }

	layer, surface := usableLayer(t, src)
	layer.HandleTileError(TileCoord{Column: 0, Row: 0, Level: 2})

	layer.Detach()
	release <- nil
	time.Sleep(20 * time.Millisecond)

	if surface.tileURLCount() != 0 {
		t.Error("retry re-set a tile URL after detach")
	}
}

func TestNoRetryPolicyFallsBackImmediately(t *testing.T) {
	src := newFakeSource(NewWebMercatorTilingScheme())
	layer, surface := usableLayer(t, src)

	layer.HandleTileError(TileCoord{Column: 0, Row: 0, Level: 1})
	if surface.errorTileCount() != 1 {
		t.Errorf("error tiles: got %d, want 1", surface.errorTileCount())
	}
}
