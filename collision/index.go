package collision

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

// IndexedVolume is one tracked object handed to a Delegate rebuild.
type IndexedVolume struct {
	ID       uint32
	Volume   Volume
	Category string
}

// Delegate is an accelerated overlap backend. Rebuild replaces the
// delegate's whole data set from the current tracked objects; any error
// marks the delegate unavailable until a later rebuild succeeds.
// QueryOverlap reports the ids whose volumes overlap the registered volume
// of excludeID, excludeID itself omitted. ok is false when the delegate has
// no data for that query.
type Delegate interface {
	Rebuild(volumes []IndexedVolume) error
	QueryOverlap(excludeID uint32) ([]uint32, bool)
}

type trackedObject struct {
	category string
	source   func() Volume
	volume   Volume
	dirty    bool
}

func (o *trackedObject) currentVolume() Volume {
	if o.dirty {
		o.volume = o.source()
		o.dirty = false
	}
	return o.volume
}

// Index answers placement overlap queries over the tracked scene objects,
// through the delegate when it is healthy and by brute-force scan otherwise.
// The mode is re-evaluated on every query: an unhealthy delegate is retried
// with a fresh rebuild so a backend that recovers mid-session is picked up
// without a restart. Objects in a non blocking category never produce a
// collision regardless of geometric overlap.
//
// Safe for concurrent use.
type Index struct {
	mutex       sync.Mutex
	delegate    Delegate
	healthy     bool
	nonBlocking map[string]struct{}
	objects     map[uint32]*trackedObject

	rebuilds        uint64
	rebuildFailures uint64
	delegateQueries uint64
	fallbackQueries uint64
}

func NewIndex(delegate Delegate, nonBlockingCategories []string) *Index {
	nonBlocking := make(map[string]struct{}, len(nonBlockingCategories))
	for _, c := range nonBlockingCategories {
		nonBlocking[c] = struct{}{}
	}

	return &Index{
		delegate:    delegate,
		nonBlocking: nonBlocking,
		objects:     make(map[uint32]*trackedObject),
	}
}

// Register tracks an object. source is read lazily: only when the volume is
// first needed after Register or Invalidate, never while the index mutex is
// released.
func (idx *Index) Register(id uint32, category string, source func() Volume) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.objects[id] = &trackedObject{
		category: category,
		source:   source,
		dirty:    true,
	}
	idx.rebuildDelegate()
}

// Invalidate marks an object's volume stale after its transform changed.
func (idx *Index) Invalidate(id uint32) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	o, ok := idx.objects[id]
	if !ok {
		return
	}
	o.dirty = true
	idx.rebuildDelegate()
}

func (idx *Index) Unregister(id uint32) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if _, ok := idx.objects[id]; !ok {
		return
	}
	delete(idx.objects, id)
	idx.rebuildDelegate()
}

func (idx *Index) Len() int {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	return len(idx.objects)
}

// Tracked reports whether the object is registered.
func (idx *Index) Tracked(id uint32) bool {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	_, ok := idx.objects[id]
	return ok
}

// TrackedIDs returns the registered object ids in no particular order.
func (idx *Index) TrackedIDs() []uint32 {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	ids := make([]uint32, 0, len(idx.objects))
	for id := range idx.objects {
		ids = append(ids, id)
	}
	return ids
}

// Query returns the id of one blocking object whose volume strictly
// overlaps v, excluding excludeID. There is no ordering guarantee beyond
// "some colliding object". Delegate failures are never surfaced: the query
// falls back to the local scan.
func (idx *Index) Query(v Volume, excludeID uint32) (uint32, bool) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if idx.delegate != nil && !idx.healthy {
		idx.rebuildDelegate()
	}

	if idx.delegate != nil && idx.healthy {
		if ids, ok := idx.delegate.QueryOverlap(excludeID); ok {
			idx.delegateQueries++
			instrumentQuery(modeAccelerated)
			for _, id := range ids {
				if id == excludeID {
					continue
				}
				o, ok := idx.objects[id]
				if !ok {
					continue
				}
				if _, nonBlocking := idx.nonBlocking[o.category]; nonBlocking {
					continue
				}
				return id, true
			}
			return 0, false
		}
		// No data for this query. Scan locally instead of failing the
		// placement check.
	}

	idx.fallbackQueries++
	instrumentQuery(modeFallback)
	for id, o := range idx.objects {
		if id == excludeID {
			continue
		}
		if _, nonBlocking := idx.nonBlocking[o.category]; nonBlocking {
			continue
		}
		if o.currentVolume().Overlaps(v) {
			return id, true
		}
	}
	return 0, false
}

// rebuildDelegate pushes the full object set to the delegate. Must be
// called with the mutex held.
func (idx *Index) rebuildDelegate() {
	if idx.delegate == nil {
		return
	}

	volumes := make([]IndexedVolume, 0, len(idx.objects))
	for id, o := range idx.objects {
		volumes = append(volumes, IndexedVolume{
			ID:       id,
			Volume:   o.currentVolume(),
			Category: o.category,
		})
	}

	idx.rebuilds++
	instrumentRebuild()
	err := idx.delegate.Rebuild(volumes)
	if err != nil {
		idx.rebuildFailures++
		instrumentRebuildFailure()
		if idx.healthy {
			logs.WithTag("error", err).
				Warn("collision delegate rebuild failed, falling back to local scan")
		}
		idx.healthy = false
		return
	}
	idx.healthy = true
}

// Stats is a point in time snapshot of the index counters.
type Stats struct {
	TrackedObjects  int    `json:"tracked_objects"`
	Accelerated     bool   `json:"accelerated"`
	Rebuilds        uint64 `json:"rebuilds"`
	RebuildFailures uint64 `json:"rebuild_failures"`
	DelegateQueries uint64 `json:"delegate_queries"`
	FallbackQueries uint64 `json:"fallback_queries"`
}

func (idx *Index) Stats() Stats {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	return Stats{
		TrackedObjects:  len(idx.objects),
		Accelerated:     idx.delegate != nil && idx.healthy,
		Rebuilds:        idx.rebuilds,
		RebuildFailures: idx.rebuildFailures,
		DelegateQueries: idx.delegateQueries,
		FallbackQueries: idx.fallbackQueries,
	}
}
