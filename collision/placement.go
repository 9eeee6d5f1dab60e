package collision

// PlacementValidator is the one stable entry point for "may this volume be
// placed here" checks, independent of which Index mode is active. It has no
// state of its own.
type PlacementValidator struct {
	Index *Index
}

// IsValid reports whether the candidate volume collides with nothing,
// excluding excludeID (the object being moved, or a scratch id for a new
// placement).
func (v PlacementValidator) IsValid(candidate Volume, excludeID uint32) bool {
	_, collides := v.Index.Query(candidate, excludeID)
	return !collides
}

// Conflict returns the id of one object colliding with the candidate volume,
// excluding excludeID.
func (v PlacementValidator) Conflict(candidate Volume, excludeID uint32) (uint32, bool) {
	return v.Index.Query(candidate, excludeID)
}
