package common

// TileBounds is an inclusive min/max column and row range at one zoom level.
type TileBounds struct {
	MinCol int
	MaxCol int
	MinRow int
	MaxRow int
}

// Cols returns the number of columns in the bounds.
func (tb TileBounds) Cols() int {
	return tb.MaxCol - tb.MinCol + 1
}

// Rows returns the number of rows in the bounds.
func (tb TileBounds) Rows() int {
	return tb.MaxRow - tb.MinRow + 1
}

// Clamp restricts the bounds to a cols×rows tile grid.
func (tb TileBounds) Clamp(cols, rows int) TileBounds {
	return TileBounds{
		MinCol: clamp(tb.MinCol, 0, cols-1),
		MaxCol: clamp(tb.MaxCol, 0, cols-1),
		MinRow: clamp(tb.MinRow, 0, rows-1),
		MaxRow: clamp(tb.MaxRow, 0, rows-1),
	}
}

// Empty reports whether the bounds contain no tiles.
func (tb TileBounds) Empty() bool {
	return tb.MaxCol < tb.MinCol || tb.MaxRow < tb.MinRow
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
