package collision

import (
	"math"
	"sync"
)

// DefaultCellSize is the grid cell edge length in scene units.
const DefaultCellSize = 10.0

type cellKey struct {
	x int
	z int
}

// CellGrid is the in-process Delegate: a uniform spatial hash over the
// ground plane. Rebuild replaces the whole data set. QueryOverlap walks the
// cells spanned by the excluded object's registered volume and strict-tests
// the candidates found there, so it reports exactly what a full scan would.
//
// Safe for concurrent use.
type CellGrid struct {
	mutex    sync.RWMutex
	cellSize float32
	cells    map[cellKey][]uint32
	volumes  map[uint32]IndexedVolume
	rebuilds uint64
}

func NewCellGrid(cellSize float32) *CellGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}

	return &CellGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]uint32),
		volumes:  make(map[uint32]IndexedVolume),
	}
}

func (g *CellGrid) Rebuild(volumes []IndexedVolume) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.cells = make(map[cellKey][]uint32, len(volumes))
	g.volumes = make(map[uint32]IndexedVolume, len(volumes))

	for _, v := range volumes {
		g.volumes[v.ID] = v
		for _, key := range g.cellsFor(v.Volume) {
			g.cells[key] = append(g.cells[key], v.ID)
		}
	}

	g.rebuilds++
	return nil
}

func (g *CellGrid) QueryOverlap(excludeID uint32) ([]uint32, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	probe, ok := g.volumes[excludeID]
	if !ok {
		// Nothing registered under that id, the grid has no data for
		// this query.
		return nil, false
	}

	var overlaps []uint32
	seen := make(map[uint32]struct{}, 8)

	for _, key := range g.cellsFor(probe.Volume) {
		for _, id := range g.cells[key] {
			if id == excludeID {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			if g.volumes[id].Volume.Overlaps(probe.Volume) {
				overlaps = append(overlaps, id)
			}
		}
	}

	return overlaps, true
}

func (g *CellGrid) cellsFor(v Volume) []cellKey {
	minX := int(math.Floor(float64(v.Min.X) / float64(g.cellSize)))
	maxX := int(math.Floor(float64(v.Max.X) / float64(g.cellSize)))
	minZ := int(math.Floor(float64(v.Min.Z) / float64(g.cellSize)))
	maxZ := int(math.Floor(float64(v.Max.Z) / float64(g.cellSize)))

	keys := make([]cellKey, 0, (maxX-minX+1)*(maxZ-minZ+1))
	for x := minX; x <= maxX; x++ {
		for z := minZ; z <= maxZ; z++ {
			keys = append(keys, cellKey{x: x, z: z})
		}
	}
	return keys
}

// GridStats is a point in time snapshot of the grid layout.
type GridStats struct {
	CellSize   float32 `json:"cell_size"`
	Cells      int     `json:"cells"`
	Objects    int     `json:"objects"`
	MaxPerCell int     `json:"max_per_cell"`
	Rebuilds   uint64  `json:"rebuilds"`
}

func (g *CellGrid) Stats() GridStats {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	maxPerCell := 0
	for _, ids := range g.cells {
		if len(ids) > maxPerCell {
			maxPerCell = len(ids)
		}
	}

	return GridStats{
		CellSize:   g.cellSize,
		Cells:      len(g.cells),
		Objects:    len(g.volumes),
		MaxPerCell: maxPerCell,
		Rebuilds:   g.rebuilds,
	}
}
