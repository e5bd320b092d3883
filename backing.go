package shmbloom

import (
	"sync/atomic"
	"unsafe"
)

// backing owns a filter's bit array and insertion counter. The variant is
// chosen once at construction and decides how release works.
type backing interface {
	words() []atomic.Uint64
	counter() *atomic.Uint64
	release() error
	shared() bool
}

// privateBacking keeps the filter on the Go heap, visible to this process only.
type privateBacking struct {
	bits  []atomic.Uint64
	count atomic.Uint64
}

var _ backing = (*privateBacking)(nil)

func newPrivateBacking(length, capacity uint64) (*privateBacking, error) {
	if length == 0 || length > maxWords {
		return nil, ErrAllocation
	}
	b := &privateBacking{bits: make([]atomic.Uint64, length)}
	b.count.Store(capacity)
	return b, nil
}

func (b *privateBacking) words() []atomic.Uint64  { return b.bits }
func (b *privateBacking) counter() *atomic.Uint64 { return &b.count }
func (b *privateBacking) shared() bool            { return false }

func (b *privateBacking) release() error {
	b.bits = nil
	return nil
}

// regionViews splits a mapped filter image into its counter and bit array.
// region must be at least RegionSize(length) bytes and 8-byte aligned, which
// holds for any mapping since mappings start on a page boundary.
func regionViews(region []byte, length uint64) (*atomic.Uint64, []atomic.Uint64) {
	counter := (*atomic.Uint64)(unsafe.Pointer(&region[counterOffset]))
	bits := unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&region[bitsOffset])), length)
	return counter, bits
}
