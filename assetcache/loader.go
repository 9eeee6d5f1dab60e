package assetcache

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/garth/bloom"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Load outcome error types.
const (
	// ErrTypeNotFound is the type of errors for assets that do not exist.
	ErrTypeNotFound = "asset_not_found"

	// ErrTypeTransient is the type of errors for fetch failures that may
	// succeed on retry.
	ErrTypeTransient = "fetch_transient"

	// ErrTypeMalformed is the type of errors for assets that exist but
	// cannot be parsed.
	ErrTypeMalformed = "asset_malformed"

	// ErrTypeCanceled is the type of errors for loads that were canceled
	// or superseded. It is neither a success nor a failure.
	ErrTypeCanceled = "load_canceled"
)

// Fetcher retrieves an asset template from its backing store. Fetch errors
// carry one of the load error types. Honoring ctx is a best effort abort,
// the loader discards late results either way.
type Fetcher interface {
	Fetch(ctx context.Context, key models.AssetKey) (*models.AssetTemplate, error)
}

type pendingLoad struct {
	key    models.AssetKey
	cancel context.CancelFunc
}

// Loader resolves asset templates through the absent filter, the cache and
// finally the fetcher. At most one load is in flight per identity, a newer
// load for the same identity supersedes the older one. It is safe for
// concurrent use.
type Loader struct {
	fetcher Fetcher
	cache   *Cache
	present *bloom.Filter
	absent  *bloom.Filter

	mutex   sync.Mutex
	pending map[uint32]*pendingLoad
}

func NewLoader(fetcher Fetcher, cache *Cache, present, absent *bloom.Filter) *Loader {
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		present: present,
		absent:  absent,
		pending: make(map[uint32]*pendingLoad),
	}
}

// Load resolves the template for key on behalf of identity. It blocks until
// the template is available, the load fails or it is canceled. A canceled or
// superseded load resolves with an ErrTypeCanceled error and leaves the
// cache and the filters untouched.
func (l *Loader) Load(ctx context.Context, key models.AssetKey, identity uint32) (*models.AssetTemplate, error) {
	start := time.Now()

	l.mutex.Lock()

	if prev, ok := l.pending[identity]; ok {
		prev.cancel()
		delete(l.pending, identity)
	}

	if l.absent.MightContainString(key.ID()) {
		l.mutex.Unlock()

		instrumentLoad("short_circuit", time.Since(start))
		return nil, errors.New("asset is known to be absent").
			WithType(ErrTypeNotFound).
			WithTag("asset", key.ID())
	}

	if template, ok := l.cache.Get(key); ok {
		l.mutex.Unlock()

		instrumentLoad("hit", time.Since(start))
		return template, nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	p := &pendingLoad{key: key, cancel: cancel}
	l.pending[identity] = p
	l.mutex.Unlock()

	instrumentFetchStarted()
	template, err := l.fetcher.Fetch(fetchCtx, key)
	instrumentFetchDone()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Canceled and superseded loads resolve before any error
	// classification. Late results write nothing.
	canceled := l.pending[identity] != p || fetchCtx.Err() != nil
	if l.pending[identity] == p {
		delete(l.pending, identity)
	}
	cancel()

	if canceled {
		instrumentLoad("canceled", time.Since(start))
		return nil, errors.New("asset load canceled").
			WithType(ErrTypeCanceled).
			WithTag("asset", key.ID())
	}

	if err != nil {
		switch {
		case errors.IsType(err, ErrTypeNotFound):
			l.absent.AddString(key.ID())
			instrumentLoad("not_found", time.Since(start))

		case errors.IsType(err, ErrTypeMalformed):
			instrumentLoad("malformed", time.Since(start))

		default:
			instrumentLoad("transient", time.Since(start))
		}
		return nil, err
	}

	l.cache.Put(key, template)
	l.present.AddString(key.ID())

	instrumentLoad("fetched", time.Since(start))
	return template.Clone(), nil
}

// Cancel aborts the in-flight load registered under identity. It reports
// whether there was one.
func (l *Loader) Cancel(identity uint32) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	p, ok := l.pending[identity]
	if !ok {
		return false
	}

	p.cancel()
	delete(l.pending, identity)
	return true
}

// CancelAll aborts every in-flight load and returns how many there were.
func (l *Loader) CancelAll() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	n := len(l.pending)
	for identity, p := range l.pending {
		p.cancel()
		delete(l.pending, identity)
	}
	return n
}

// FilterStats is a point-in-time view of one bloom filter.
type FilterStats struct {
	Adds                       uint64  `json:"adds"`
	FillRatio                  float64 `json:"fill_ratio"`
	EstimatedFalsePositiveRate float64 `json:"estimated_false_positive_rate"`
}

// Stats is a point-in-time view of the loader and its cache.
type Stats struct {
	CacheLen      int         `json:"cache_len"`
	CacheCapacity int         `json:"cache_capacity"`
	InFlight      int         `json:"in_flight"`
	Present       FilterStats `json:"present"`
	Absent        FilterStats `json:"absent"`
}

func (l *Loader) Stats() Stats {
	l.mutex.Lock()
	inFlight := len(l.pending)
	l.mutex.Unlock()

	return Stats{
		CacheLen:      l.cache.Len(),
		CacheCapacity: l.cache.Capacity(),
		InFlight:      inFlight,
		Present:       filterStats(l.present),
		Absent:        filterStats(l.absent),
	}
}

func filterStats(f *bloom.Filter) FilterStats {
	return FilterStats{
		Adds:                       f.Count(),
		FillRatio:                  f.FillRatio(),
		EstimatedFalsePositiveRate: f.EstimatedFalsePositiveRate(),
	}
}
