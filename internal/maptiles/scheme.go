package maptiles

import "math"

// WebMercatorLatLimit is the northern/southern latitude cutoff of the Web
// Mercator projection in degrees.
const WebMercatorLatLimit = 85.05112878

// Rectangle is a geographic rectangle in WGS84 degrees.
type Rectangle struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains reports whether the position lies inside the rectangle (edges included).
func (r Rectangle) Contains(lon, lat float64) bool {
	return lon >= r.West && lon <= r.East && lat >= r.South && lat <= r.North
}

// TileCoord identifies a tile by column, row and zoom level in rendering-surface space.
type TileCoord struct {
	Column int `json:"column"`
	Row    int `json:"row"`
	Level  int `json:"level"`
}

// TilingScheme maps geographic positions onto a pyramid of tiles.
//
// PositionToTile may fail to resolve a position that lies exactly on a tiling
// boundary or outside the scheme's rectangle; callers that need a tile no
// matter what should go through TileAtOrEdge.
type TilingScheme interface {
	Rectangle() Rectangle
	TileCount(level int) (cols, rows int)
	PositionToTile(lon, lat float64, level int) (TileCoord, bool)
}

// WebMercatorTilingScheme is the standard slippy-map scheme. Root tile counts
// default to 1×1 but can be overridden for sources whose level 0 is already
// subdivided (some WMTS matrix sets use 2×2).
type WebMercatorTilingScheme struct {
	RootTilesX int
	RootTilesY int
}

// NewWebMercatorTilingScheme returns a scheme with a single root tile.
func NewWebMercatorTilingScheme() *WebMercatorTilingScheme {
	return &WebMercatorTilingScheme{RootTilesX: 1, RootTilesY: 1}
}

func (s *WebMercatorTilingScheme) roots() (int, int) {
	x, y := s.RootTilesX, s.RootTilesY
	if x < 1 {
		x = 1
	}
	if y < 1 {
		y = 1
	}
	return x, y
}

// Rectangle returns the Web Mercator coverage rectangle.
func (s *WebMercatorTilingScheme) Rectangle() Rectangle {
	return Rectangle{West: -180, South: -WebMercatorLatLimit, East: 180, North: WebMercatorLatLimit}
}

// TileCount returns the tile grid dimensions at the given level.
func (s *WebMercatorTilingScheme) TileCount(level int) (cols, rows int) {
	x, y := s.roots()
	return x << level, y << level
}

// PositionToTile maps a WGS84 position to the tile containing it. Positions
// outside the scheme rectangle, or exactly on its eastern/southern boundary,
// do not resolve.
func (s *WebMercatorTilingScheme) PositionToTile(lon, lat float64, level int) (TileCoord, bool) {
	if !s.Rectangle().Contains(lon, lat) {
		return TileCoord{}, false
	}

	cols, rows := s.TileCount(level)

	xFrac := (lon + 180.0) / 360.0
	latRad := lat * math.Pi / 180.0
	mercY := math.Log(math.Tan(math.Pi/4 + latRad/2))
	yFrac := 0.5 - mercY/(2*math.Pi)

	col := int(xFrac * float64(cols))
	row := int(yFrac * float64(rows))
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return TileCoord{}, false
	}

	return TileCoord{Column: col, Row: row, Level: level}, true
}

// GeographicTilingScheme covers the full globe with a 2×1 root grid
// (equirectangular). Rendering surfaces built around power-of-two square
// pyramids cannot display it, which makes it the canonical unsupported case
// for the scheme reconciler.
type GeographicTilingScheme struct{}

// Rectangle returns the full WGS84 rectangle.
func (s *GeographicTilingScheme) Rectangle() Rectangle {
	return Rectangle{West: -180, South: -90, East: 180, North: 90}
}

// TileCount returns the tile grid dimensions at the given level.
func (s *GeographicTilingScheme) TileCount(level int) (cols, rows int) {
	return 2 << level, 1 << level
}

// PositionToTile maps a WGS84 position to the tile containing it.
func (s *GeographicTilingScheme) PositionToTile(lon, lat float64, level int) (TileCoord, bool) {
	if !s.Rectangle().Contains(lon, lat) {
		return TileCoord{}, false
	}

	cols, rows := s.TileCount(level)
	col := int((lon + 180.0) / 360.0 * float64(cols))
	row := int((90.0 - lat) / 180.0 * float64(rows))
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return TileCoord{}, false
	}

	return TileCoord{Column: col, Row: row, Level: level}, true
}

// TileAtOrEdge resolves a position to a tile, substituting the nearest edge
// tile when the position does not resolve cleanly (boundary miss or a
// position outside the scheme rectangle). A boundary miss is never an error.
func TileAtOrEdge(s TilingScheme, lon, lat float64, level int) TileCoord {
	if tc, ok := s.PositionToTile(lon, lat, level); ok {
		return tc
	}

	cols, rows := s.TileCount(level)
	r := s.Rectangle()
	col := int((lon - r.West) / (r.East - r.West) * float64(cols))
	row := int((r.North - lat) / (r.North - r.South) * float64(rows))

	return TileCoord{
		Column: clamp(col, 0, cols-1),
		Row:    clamp(row, 0, rows-1),
		Level:  level,
	}
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
