package collision

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func staticVolume(v Volume) func() Volume {
	return func() Volume { return v }
}

func TestIndexFallbackQuery(t *testing.T) {
	idx := NewIndex(nil, nil)

	idx.Register(1, "buildings", staticVolume(box(0, 0, 4, 4)))
	idx.Register(2, "buildings", staticVolume(box(10, 10, 14, 14)))
	require.Equal(t, 2, idx.Len())

	id, collides := idx.Query(box(3, 3, 5, 5), 0)
	require.True(t, collides)
	require.EqualValues(t, 1, id)

	// touching is not colliding:
	_, collides = idx.Query(box(4, 0, 8, 4), 0)
	require.False(t, collides)

	// the moved object does not collide with itself:
	_, collides = idx.Query(box(1, 1, 3, 3), 1)
	require.False(t, collides)

	idx.Unregister(1)
	require.Equal(t, 1, idx.Len())
	_, collides = idx.Query(box(3, 3, 5, 5), 0)
	require.False(t, collides)
}

func TestIndexTracked(t *testing.T) {
	idx := NewIndex(nil, nil)
	require.False(t, idx.Tracked(1))
	require.Empty(t, idx.TrackedIDs())

	idx.Register(1, "buildings", staticVolume(box(0, 0, 4, 4)))
	idx.Register(7, "trees", staticVolume(box(10, 10, 14, 14)))

	require.True(t, idx.Tracked(1))
	require.True(t, idx.Tracked(7))
	require.False(t, idx.Tracked(2))
	require.ElementsMatch(t, []uint32{1, 7}, idx.TrackedIDs())

	idx.Unregister(1)
	require.False(t, idx.Tracked(1))
	require.ElementsMatch(t, []uint32{7}, idx.TrackedIDs())
}

func TestIndexNonBlockingCategories(t *testing.T) {
	idx := NewIndex(nil, []string{"roads", "terrain", "park"})

	idx.Register(1, "roads", staticVolume(box(0, 0, 10, 10)))
	idx.Register(2, "terrain", staticVolume(box(0, 0, 100, 100)))
	idx.Register(3, "buildings", staticVolume(box(4, 4, 6, 6)))

	_, collides := idx.Query(box(0, 0, 2, 2), 0)
	require.False(t, collides)

	id, collides := idx.Query(box(5, 5, 7, 7), 0)
	require.True(t, collides)
	require.EqualValues(t, 3, id)
}

func TestIndexLazyVolumes(t *testing.T) {
	idx := NewIndex(nil, nil)

	calls := 0
	idx.Register(1, "buildings", func() Volume {
		calls++
		return box(0, 0, 4, 4)
	})

	// without a delegate nothing materializes until a query needs it:
	require.Zero(t, calls)

	idx.Query(box(1, 1, 2, 2), 0)
	require.Equal(t, 1, calls)

	idx.Query(box(1, 1, 2, 2), 0)
	require.Equal(t, 1, calls)

	idx.Invalidate(1)
	require.Equal(t, 1, calls)

	idx.Query(box(1, 1, 2, 2), 0)
	require.Equal(t, 2, calls)
}

func TestIndexWithCellGridDelegate(t *testing.T) {
	idx := NewIndex(NewCellGrid(10), []string{"roads"})

	idx.Register(1, "buildings", staticVolume(box(0, 0, 4, 4)))
	idx.Register(2, "roads", staticVolume(box(0, 0, 20, 20)))
	idx.Register(3, "buildings", staticVolume(box(3, 3, 7, 7)))

	// registered probe goes through the delegate:
	id, collides := idx.Query(box(3, 3, 7, 7), 3)
	require.True(t, collides)
	require.EqualValues(t, 1, id)

	// unregistered probe has no delegate data and scans locally:
	_, collides = idx.Query(box(100, 100, 104, 104), 99)
	require.False(t, collides)

	stats := idx.Stats()
	require.True(t, stats.Accelerated)
	require.Equal(t, 3, stats.TrackedObjects)
	require.EqualValues(t, 1, stats.DelegateQueries)
	require.EqualValues(t, 1, stats.FallbackQueries)
}

type flakyDelegate struct {
	grid *CellGrid
	fail bool
}

func (d *flakyDelegate) Rebuild(volumes []IndexedVolume) error {
	if d.fail {
		return errors.New("delegate unavailable")
	}
	return d.grid.Rebuild(volumes)
}

func (d *flakyDelegate) QueryOverlap(excludeID uint32) ([]uint32, bool) {
	if d.fail {
		return nil, false
	}
	return d.grid.QueryOverlap(excludeID)
}

func TestIndexDelegateFailureFallsBack(t *testing.T) {
	delegate := &flakyDelegate{grid: NewCellGrid(10), fail: true}
	idx := NewIndex(delegate, nil)
	reference := NewIndex(nil, nil)

	register := func(id uint32, category string, v Volume) {
		idx.Register(id, category, staticVolume(v))
		reference.Register(id, category, staticVolume(v))
	}
	register(1, "buildings", box(0, 0, 4, 4))
	register(2, "props", box(3, 3, 5, 5))
	register(3, "trees", box(20, 20, 22, 22))

	require.False(t, idx.Stats().Accelerated)

	// unhealthy delegate results match the brute-force reference exactly:
	probes := []Volume{
		box(1, 1, 2, 2),
		box(4, 4, 4.5, 4.5),
		box(21, 21, 21.5, 21.5),
		box(50, 50, 51, 51),
	}
	for _, probe := range probes {
		_, got := idx.Query(probe, 0)
		_, want := reference.Query(probe, 0)
		require.Equal(t, want, got)
	}

	// a recovered delegate is picked up on the next query without a restart:
	delegate.fail = false
	id, collides := idx.Query(box(1, 1, 2, 2), 1)
	require.True(t, collides)
	require.EqualValues(t, 2, id)
	require.True(t, idx.Stats().Accelerated)
}
