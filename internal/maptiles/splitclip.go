package maptiles

import "math"

// SplitMode selects which portion of the viewport a layer renders into when
// two layers are compared side by side.
type SplitMode string

const (
	SplitNone  SplitMode = "none"
	SplitLeft  SplitMode = "left"
	SplitRight SplitMode = "right"
)

// Valid reports whether the mode is one of the known values.
func (m SplitMode) Valid() bool {
	return m == SplitNone || m == SplitLeft || m == SplitRight
}

// ClipRect is an axis-aligned clip rectangle in map container pixel space,
// rounded to whole pixels.
type ClipRect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// ComputeSplitRects computes the "show left portion" and "show right portion"
// clip rectangles for a split position fraction in [0,1]. The split offset is
// viewport width × position, rounded to the nearest pixel.
func ComputeSplitRects(geo MapGeometry, position float64) (left, right ClipRect) {
	splitX := roundPx(geo.TopLeft.X) + int(math.Round(geo.Width*position))

	left = ClipRect{
		Left:   roundPx(geo.TopLeft.X),
		Top:    roundPx(geo.TopLeft.Y),
		Right:  splitX,
		Bottom: roundPx(geo.BottomRight.Y),
	}
	right = ClipRect{
		Left:   splitX,
		Top:    roundPx(geo.TopLeft.Y),
		Right:  roundPx(geo.BottomRight.X),
		Bottom: roundPx(geo.BottomRight.Y),
	}
	return left, right
}

func roundPx(v float64) int {
	return int(math.Round(v))
}

// applySplitClip pushes the clip for the active mode to the surface, or
// clears clipping when the mode is none. Some legacy engines cache the clip
// style; the surface advertises that through NeedsLayoutFlush and the forced
// layout read is skipped everywhere else.
func applySplitClip(surface RenderSurface, geo MapGeometry, mode SplitMode, position float64) {
	switch mode {
	case SplitLeft:
		left, _ := ComputeSplitRects(geo, position)
		surface.SetClip(&left)
	case SplitRight:
		_, right := ComputeSplitRects(geo, position)
		surface.SetClip(&right)
	default:
		surface.SetClip(nil)
	}

	if surface.NeedsLayoutFlush() {
		surface.ForceLayoutFlush()
	}
}
