package shmbloom

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"go.uber.org/zap"
)

// Filter is a Bloom filter whose bit array and insertion counter live either
// on the Go heap ([New]) or in a memory-mapped file shared between processes
// ([OpenShared], [OpenFile]).
//
// All methods except Close are safe for concurrent use. Every bit update is a
// word-sized atomic OR, so concurrent inserts from goroutines or from other
// processes mapping the same file never lose each other's bits.
//
// The filter holds at most Capacity keys. The insert that finds the budget
// exhausted clears the whole filter before recording its own key, discarding
// everything inserted earlier.
type Filter struct {
	capacity  uint64
	errorRate float64
	probes    int32
	length    uint64 // words in bits

	backing backing
	bits    []atomic.Uint64
	counter *atomic.Uint64

	logger *zap.Logger
}

// New creates a zeroed filter on the Go heap sized for capacity keys at the
// target false positive rate.
func New(capacity uint64, errorRate float64, opts ...Option) (*Filter, error) {
	k, err := ProbeCount(errorRate)
	if err != nil {
		return nil, err
	}
	length := WordLength(capacity, errorRate)
	b, err := newPrivateBacking(length, capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %d words requested", err, length)
	}

	o := buildOptions(opts)
	return newFilter(capacity, errorRate, k, length, b, o.logger), nil
}

// newFilter resolves the backing views once; the engine never consults the
// backing again until Close.
func newFilter(capacity uint64, errorRate float64, k int32, length uint64, b backing, log *zap.Logger) *Filter {
	return &Filter{
		capacity:  capacity,
		errorRate: errorRate,
		probes:    k,
		length:    length,
		backing:   b,
		bits:      b.words(),
		counter:   b.counter(),
		logger:    log,
	}
}

// InsertHash records a key given its 64-bit hash. It reports whether this
// insert found the capacity exhausted and reset the filter first.
func (f *Filter) InsertHash(hash uint64) bool {
	observed := f.counter.Add(^uint64(0)) + 1

	reset := observed == 0 || observed > f.capacity
	if reset {
		f.logger.Debug("Bloom filter saturated, clearing",
			zap.Uint64("capacity", f.capacity),
			zap.Uint64("observed", observed),
			zap.Bool("shared", f.backing.shared()))
		f.Clear()
	}

	h := Mix(hash)
	for range f.probes {
		f.bits[(h>>6)%f.length].Or(uint64(1) << (h & 63))
		h = Mix(h)
	}
	return reset
}

// TestHash reports whether a key with the given hash may be in the filter.
// A false result is definitive for keys inserted since the last clear.
func (f *Filter) TestHash(hash uint64) bool {
	h := Mix(hash)
	for range f.probes {
		if f.bits[(h>>6)%f.length].Load()&(uint64(1)<<(h&63)) == 0 {
			return false
		}
		h = Mix(h)
	}
	return true
}

// Add inserts data. See [Filter.InsertHash] for the result.
func (f *Filter) Add(data []byte) bool {
	return f.InsertHash(HashBytes(data))
}

// AddString inserts s without allocating.
func (f *Filter) AddString(s string) bool {
	return f.InsertHash(HashString(s))
}

// Test checks if data might be in the filter.
func (f *Filter) Test(data []byte) bool {
	return f.TestHash(HashBytes(data))
}

// TestString checks if s might be in the filter without allocating.
func (f *Filter) TestString(s string) bool {
	return f.TestHash(HashString(s))
}

// TestAndAdd reports whether data was possibly present and then inserts it.
// The test and the insert are two separate steps; another writer can insert
// the same key in between.
func (f *Filter) TestAndAdd(data []byte) bool {
	h := HashBytes(data)
	present := f.TestHash(h)
	f.InsertHash(h)
	return present
}

// Clear zeroes the bit array and restores the insertion budget to capacity.
//
// Clear is not atomic as a whole. Words are zeroed one at a time and the
// counter is reset last, so a concurrent Test may see a partly cleared array
// and a concurrent insert may decrement the counter just before it is reset,
// which can cause one extra saturation reset shortly afterwards. Both are
// within the approximate contract of the filter.
func (f *Filter) Clear() {
	for i := range f.bits {
		f.bits[i].Store(0)
	}
	f.counter.Store(f.capacity)
}

// Population returns the number of set bits.
func (f *Filter) Population() uint64 {
	var n uint64
	for i := range f.bits {
		n += uint64(bits.OnesCount64(f.bits[i].Load()))
	}
	return n
}

// Remaining returns how many more inserts the filter accepts before it
// resets itself.
func (f *Filter) Remaining() uint64 {
	return f.counter.Load()
}

// Count returns the number of inserts since the last clear, as tracked by the
// counter.
func (f *Filter) Count() uint64 {
	r := f.Remaining()
	if r > f.capacity {
		return 0
	}
	return f.capacity - r
}

// Capacity returns the number of keys the filter is sized for.
func (f *Filter) Capacity() uint64 { return f.capacity }

// ErrorRate returns the target false positive rate.
func (f *Filter) ErrorRate() float64 { return f.errorRate }

// K returns the number of probes per key.
func (f *Filter) K() int32 { return f.probes }

// Words returns the number of 64-bit words in the bit array.
func (f *Filter) Words() uint64 { return f.length }

// Cap returns the size of the bit array in bits.
func (f *Filter) Cap() uint64 { return f.length * WordBits }

// Shared reports whether the filter is backed by a shared file mapping.
func (f *Filter) Shared() bool { return f.backing.shared() }

// EstimatedFillRatio estimates the proportion of bits that are set.
func (f *Filter) EstimatedFillRatio() float64 {
	return float64(f.Population()) / float64(f.Cap())
}

// EstimatedFalsePositiveRate estimates the current false positive rate from
// the number of inserts since the last clear.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	return EstimateFalsePositiveRate(f.length, f.probes, f.Count())
}

// Info is a point-in-time summary of a filter.
type Info struct {
	Capacity   uint64
	ErrorRate  float64
	Probes     int32
	Words      uint64
	Remaining  uint64
	Population uint64
	Shared     bool
}

// Info returns the filter's geometry and current fill.
func (f *Filter) Info() Info {
	return Info{
		Capacity:   f.capacity,
		ErrorRate:  f.errorRate,
		Probes:     f.probes,
		Words:      f.length,
		Remaining:  f.Remaining(),
		Population: f.Population(),
		Shared:     f.Shared(),
	}
}

// Close releases the filter's storage: the heap array for private filters,
// the mapping for shared ones. The file itself is left in place. Close is
// idempotent, must not run concurrently with other methods, and the filter
// must not be used afterwards.
func (f *Filter) Close() error {
	if f.bits == nil {
		return nil
	}
	f.bits, f.counter = nil, nil
	return f.backing.release()
}
