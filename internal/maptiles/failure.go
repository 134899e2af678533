package maptiles

import "github.com/google/uuid"

// TileFailure correlates repeated load failures at one tile coordinate so
// retries are coalesced instead of raised as independent events. At most one
// handle is pending per layer; a failure at a different coordinate replaces
// it.
type TileFailure struct {
	ID       uuid.UUID `json:"id"`
	Tile     TileCoord `json:"tile"`
	Message  string    `json:"message"`
	Attempts int       `json:"attempts"`
}

// handleTileFailure updates the pending failure handle for a tile load error
// and asks the source's retry policy what to do. When the source grants a
// retry it returns a wait channel; the retry callback runs once the wait
// resolves, the fallback when the wait fails or no retry is granted.
// Idempotent across repeated failures at the same coordinate: the previous
// handle is reused and its attempt count grows.
func handleTileFailure(prev *TileFailure, src ImagerySource, msg string, tile TileCoord, retry, fallback func()) *TileFailure {
	f := prev
	if f == nil || f.Tile != tile {
		f = &TileFailure{ID: uuid.New(), Tile: tile}
	}
	f.Message = msg
	f.Attempts++

	decider, ok := src.(RetryDecider)
	if !ok {
		fallback()
		return f
	}

	wait := decider.RetryTile(f)
	if wait == nil {
		fallback()
		return f
	}

	go func() {
		if err := <-wait; err != nil {
			fallback()
			return
		}
		retry()
	}()

	return f
}
