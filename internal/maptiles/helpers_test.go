package maptiles

import (
	"sync"
	"time"
)

// fakeSource is a scriptable ImagerySource for tests.
type fakeSource struct {
	mu     sync.Mutex
	ready  bool
	scheme TilingScheme

	minLevel, maxLevel int
	hasMin, hasMax     bool

	credit *Credit

	tileCredits func(col, row, level int) []Credit
	tileURL     func(col, row, level int) (string, bool)
	urlCalls    int

	pick func(col, row, level int, lon, lat float64) ([]Feature, error)
}

func newFakeSource(scheme TilingScheme) *fakeSource {
	return &fakeSource{ready: true, scheme: scheme}
}

func (s *fakeSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSource) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *fakeSource) TilingScheme() TilingScheme { return s.scheme }

func (s *fakeSource) MinimumLevel() (int, bool) { return s.minLevel, s.hasMin }
func (s *fakeSource) MaximumLevel() (int, bool) { return s.maxLevel, s.hasMax }

func (s *fakeSource) Credit() *Credit { return s.credit }

func (s *fakeSource) TileCredits(col, row, level int) []Credit {
	if s.tileCredits == nil {
		return nil
	}
	return s.tileCredits(col, row, level)
}

func (s *fakeSource) TileURL(col, row, level int) (string, bool) {
	s.mu.Lock()
	s.urlCalls++
	s.mu.Unlock()
	if s.tileURL == nil {
		return "", false
	}
	return s.tileURL(col, row, level)
}

func (s *fakeSource) PickFeatures(col, row, level int, lon, lat float64) ([]Feature, error) {
	if s.pick == nil {
		return nil, nil
	}
	return s.pick(col, row, level, lon, lat)
}

// retrySource adds a scriptable retry policy on top of fakeSource.
type retrySource struct {
	*fakeSource
	retryTile func(f *TileFailure) <-chan error
}

func (s *retrySource) RetryTile(f *TileFailure) <-chan error {
	if s.retryTile == nil {
		return nil
	}
	return s.retryTile(f)
}

// fakeAttribution records add/remove calls by representation.
type fakeAttribution struct {
	mu      sync.Mutex
	adds    []string
	removes []string
}

func (a *fakeAttribution) AddCredit(html string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.adds = append(a.adds, html)
}

func (a *fakeAttribution) RemoveCredit(html string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removes = append(a.removes, html)
}

func (a *fakeAttribution) addCount(html string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, h := range a.adds {
		if h == html {
			n++
		}
	}
	return n
}

func (a *fakeAttribution) removeCount(html string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, h := range a.removes {
		if h == html {
			n++
		}
	}
	return n
}

type tileURLCall struct {
	tile TileCoord
	url  string
}

// fakeSurface records every surface interaction.
type fakeSurface struct {
	mu          sync.Mutex
	attribution *fakeAttribution

	tileURLs   []tileURLCall
	errorTiles []TileCoord
	clips      []*ClipRect
	zoomBounds [][2]int
	aborts     int

	needsFlush bool
	flushes    int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{attribution: &fakeAttribution{}}
}

func (s *fakeSurface) SetTileURL(tile TileCoord, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tileURLs = append(s.tileURLs, tileURLCall{tile: tile, url: url})
}

func (s *fakeSurface) ShowTileError(tile TileCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorTiles = append(s.errorTiles, tile)
}

func (s *fakeSurface) SetNativeZoomBounds(min, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoomBounds = append(s.zoomBounds, [2]int{min, max})
}

func (s *fakeSurface) SetClip(clip *ClipRect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
}

func (s *fakeSurface) NeedsLayoutFlush() bool { return s.needsFlush }

func (s *fakeSurface) ForceLayoutFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *fakeSurface) AbortPendingRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborts++
}

func (s *fakeSurface) Attribution() AttributionView { return s.attribution }

func (s *fakeSurface) lastClip() *ClipRect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clips) == 0 {
		return nil
	}
	return s.clips[len(s.clips)-1]
}

func (s *fakeSurface) tileURLCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tileURLs)
}

func (s *fakeSurface) errorTileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errorTiles)
}

// fastOptions keeps the polling and debounce delays short for tests.
func fastOptions() Options {
	return Options{
		PollInterval:  5 * time.Millisecond,
		DebounceDelay: 5 * time.Millisecond,
	}
}

// waitFor polls a condition until it holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// testGeometry is a 1000×800 viewport at the container origin.
func testGeometry(zoom int, bounds Rectangle) MapGeometry {
	return MapGeometry{
		Zoom:        zoom,
		Width:       1000,
		Height:      800,
		TopLeft:     PixelPoint{X: 0, Y: 0},
		BottomRight: PixelPoint{X: 1000, Y: 800},
		Bounds:      bounds,
	}
}
