package raido

import "github.com/aukilabs/garth/collision"

// State is the per scene collision state. The grid delegate, the index and
// the validator are created once and shared by every participant.
type State struct {
	Grid      *collision.CellGrid
	Index     *collision.Index
	Validator collision.PlacementValidator
}

func NewState(cellSize float32, nonBlocking []string) *State {
	grid := collision.NewCellGrid(cellSize)
	index := collision.NewIndex(grid, nonBlocking)

	return &State{
		Grid:      grid,
		Index:     index,
		Validator: collision.PlacementValidator{Index: index},
	}
}
