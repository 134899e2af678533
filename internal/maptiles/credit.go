package maptiles

// Credit is one unit of attribution associated with imagery covering a tile.
// The HTML representation doubles as the identity key: the attribution view
// is add/remove-by-representation, so two credits with the same HTML are the
// same credit.
type Credit struct {
	HTML string `json:"html"`
}
