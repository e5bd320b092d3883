package shmbloom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Persisted layout of a shared filter file. Integers and the error rate are
// stored in host byte order because the counter and bit words are updated in
// place with native atomic operations.
//
//	offset  size        field
//	0       24          magic
//	24      8           capacity
//	32      8           error rate (IEEE-754)
//	40      8           live counter, capacity at creation
//	48      8*words     bit array, zero at creation
const (
	// Magic identifies a filter file and its format version.
	Magic = "Peloton Bloom Filter 0.0"

	magicSize      = len(Magic)
	capacityOffset = magicSize
	rateOffset     = capacityOffset + 8
	counterOffset  = rateOffset + 8
	bitsOffset     = counterOffset + 8

	// HeaderSize is the number of bytes preceding the bit array, counter
	// included.
	HeaderSize = bitsOffset
)

// maxWords bounds the bit array: the region size must fit in an int and stay
// within what the runtime can allocate (256 TiB on 64-bit platforms).
const maxWords = uint64(min((math.MaxInt-HeaderSize)/8, 1<<45))

// Header holds the persisted fields of a filter image.
type Header struct {
	Capacity  uint64
	ErrorRate float64
	Counter   uint64
}

// Probes returns the probe count derived from the persisted error rate.
func (h Header) Probes() int32 {
	k, _ := ProbeCount(h.ErrorRate)
	return k
}

// Words returns the bit array length derived from the persisted capacity and
// error rate.
func (h Header) Words() uint64 {
	return WordLength(h.Capacity, h.ErrorRate)
}

// RegionSize returns the total image size for a bit array of words words.
func RegionSize(words uint64) int64 {
	return int64(HeaderSize) + int64(words)*8
}

// EncodeHeader writes h into the first HeaderSize bytes of region.
func EncodeHeader(region []byte, h Header) error {
	if len(region) < HeaderSize {
		return fmt.Errorf("shmbloom: header buffer too small (got %d bytes, need %d)", len(region), HeaderSize)
	}
	copy(region[:magicSize], Magic)
	binary.NativeEndian.PutUint64(region[capacityOffset:], h.Capacity)
	binary.NativeEndian.PutUint64(region[rateOffset:], math.Float64bits(h.ErrorRate))
	binary.NativeEndian.PutUint64(region[counterOffset:], h.Counter)
	return nil
}

// DecodeHeader parses and validates the header at the start of region.
//
// Any mismatch of the magic bytes, including a region shorter than the magic,
// is reported as ErrFormatMismatch before anything else is inspected.
func DecodeHeader(region []byte) (Header, error) {
	if len(region) < magicSize || string(region[:magicSize]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormatMismatch)
	}
	if len(region) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated (got %d bytes, need %d)", ErrFormatMismatch, len(region), HeaderSize)
	}

	h := Header{
		Capacity:  binary.NativeEndian.Uint64(region[capacityOffset:]),
		ErrorRate: math.Float64frombits(binary.NativeEndian.Uint64(region[rateOffset:])),
		Counter:   binary.NativeEndian.Uint64(region[counterOffset:]),
	}

	if _, err := ProbeCount(h.ErrorRate); err != nil {
		return Header{}, fmt.Errorf("%w: persisted %w", ErrFormatMismatch, err)
	}
	if h.Words() > maxWords {
		return Header{}, fmt.Errorf("%w: persisted capacity %d too large", ErrFormatMismatch, h.Capacity)
	}
	return h, nil
}

// ReadHeader reads and validates the header of a filter image without
// locking or mapping it.
func ReadHeader(r io.ReaderAt) (Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return Header{}, fmt.Errorf("%w: read header: %w", ErrIO, err)
	}
	return DecodeHeader(buf[:n])
}
