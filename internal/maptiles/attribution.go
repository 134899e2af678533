package maptiles

import "imagery-compare/internal/common"

// attributionTracker maintains the set of credits shown for the currently
// visible tile range. Each refresh cycle gets a generation number; a credit
// confirmed in the current generation is never added twice, and a credit
// active last cycle but unconfirmed this cycle is removed exactly once.
type attributionTracker struct {
	view AttributionView

	gen       uint64
	confirmed map[string]uint64   // representation -> generation last confirmed
	active    map[string]struct{} // shown as of the last completed cycle
}

func newAttributionTracker(view AttributionView) *attributionTracker {
	return &attributionTracker{
		view:      view,
		confirmed: make(map[string]uint64),
		active:    make(map[string]struct{}),
	}
}

// visibleTileRange converts the map's visible geographic bounds to a tile
// range at the given source level, substituting edge tiles for positions the
// scheme cannot resolve and clamping to the scheme grid.
func visibleTileRange(scheme TilingScheme, bounds Rectangle, level int) common.TileBounds {
	nw := TileAtOrEdge(scheme, bounds.West, bounds.North, level)
	se := TileAtOrEdge(scheme, bounds.East, bounds.South, level)

	cols, rows := scheme.TileCount(level)
	return common.TileBounds{
		MinCol: nw.Column,
		MaxCol: se.Column,
		MinRow: nw.Row,
		MaxRow: se.Row,
	}.Clamp(cols, rows)
}

// Update runs one refresh cycle, diffing the visible credits against the
// previous cycle's active set.
func (t *attributionTracker) Update(src ImagerySource, scheme TilingScheme, bounds Rectangle, level int) {
	t.gen++
	next := make(map[string]struct{})

	r := visibleTileRange(scheme, bounds, level)
	// Rows run north to south against an exclusive bound, columns are
	// inclusive; this matches the surface's half-open tiling convention.
	for row := r.MinRow; row < r.MaxRow+1; row++ {
		for col := r.MinCol; col <= r.MaxCol; col++ {
			for _, c := range src.TileCredits(col, row, level) {
				if t.confirmed[c.HTML] == t.gen {
					continue
				}
				t.confirmed[c.HTML] = t.gen
				next[c.HTML] = struct{}{}
				if _, wasActive := t.active[c.HTML]; !wasActive {
					t.view.AddCredit(c.HTML)
				}
			}
		}
	}

	for html := range t.active {
		if _, still := next[html]; !still {
			t.view.RemoveCredit(html)
			delete(t.confirmed, html)
		}
	}

	t.active = next
}

// Clear removes every active credit from the attribution view and resets all
// generation state. Called on layer detach.
func (t *attributionTracker) Clear() {
	for html := range t.active {
		t.view.RemoveCredit(html)
	}
	t.active = make(map[string]struct{})
	t.confirmed = make(map[string]uint64)
}
