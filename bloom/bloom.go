package bloom

import (
	"math"
	"math/bits"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Filter is a Bloom-type probabilistic set. MightContain never returns a
// false negative: false means the element was definitely never added, true
// means it was added or is a false positive at roughly the configured rate.
// Elements cannot be removed individually, only the whole filter can be
// cleared.
//
// Safe for concurrent use.
type Filter struct {
	mutex sync.RWMutex
	words []uint64
	m     uint32
	k     uint32
	count uint64
}

// New returns a filter sized for the given expected number of elements and
// target false positive rate, using the optimal bit count
// m = -n*ln(p)/ln(2)^2 and probe count k = m/n*ln(2). Adding more than
// expectedItems elements degrades the false positive rate but is otherwise
// harmless. Out of range arguments are clamped.
func New(expectedItems int, falsePositiveRate float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := math.Round(m / n * math.Ln2)
	if k < 1 {
		k = 1
	}

	return &Filter{
		words: make([]uint64, (uint32(m)+63)/64),
		m:     uint32(m),
		k:     uint32(k),
	}
}

func (f *Filter) Add(v []byte) {
	f.add(xxhash.Sum64(v))
}

func (f *Filter) AddString(v string) {
	f.add(xxhash.Sum64String(v))
}

func (f *Filter) add(h uint64) {
	h1, h2 := splitHash(h)

	f.mutex.Lock()
	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + i*h2) % f.m
		f.words[bit/64] |= 1 << (bit % 64)
	}
	f.count++
	f.mutex.Unlock()
}

func (f *Filter) MightContain(v []byte) bool {
	return f.mightContain(xxhash.Sum64(v))
}

func (f *Filter) MightContainString(v string) bool {
	return f.mightContain(xxhash.Sum64String(v))
}

func (f *Filter) mightContain(h uint64) bool {
	h1, h2 := splitHash(h)

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + i*h2) % f.m
		if f.words[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// Clear resets the filter to empty.
func (f *Filter) Clear() {
	f.mutex.Lock()
	for i := range f.words {
		f.words[i] = 0
	}
	f.count = 0
	f.mutex.Unlock()
}

// Count returns the number of Add calls since construction or the last
// Clear. Duplicate elements are counted every time.
func (f *Filter) Count() uint64 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return f.count
}

// Bits returns the size of the bit array.
func (f *Filter) Bits() int {
	return int(f.m)
}

// Hashes returns the number of probes per element.
func (f *Filter) Hashes() int {
	return int(f.k)
}

// FillRatio returns the fraction of bits currently set.
func (f *Filter) FillRatio() float64 {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	var set int
	for _, w := range f.words {
		set += bits.OnesCount64(w)
	}
	return float64(set) / float64(f.m)
}

// EstimatedFalsePositiveRate returns the probability that MightContain
// reports true for an element that was never added, given the current fill.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	return math.Pow(f.FillRatio(), float64(f.k))
}

// splitHash derives the two double-hashing halves from a single 64 bit
// digest. The second half is forced odd so successive probes always differ.
func splitHash(h uint64) (uint32, uint32) {
	return uint32(h), uint32(h>>32) | 1
}
