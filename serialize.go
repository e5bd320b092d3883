package shmbloom

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MarshalBinary returns the filter as a persisted image: the header with the
// current counter followed by every word of the bit array. The image is the
// same one a shared filter keeps on disk, so it can be written to a file and
// opened with [OpenFile].
//
// Concurrent inserts during MarshalBinary may or may not be captured.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RegionSize(f.length))
	h := Header{Capacity: f.capacity, ErrorRate: f.errorRate, Counter: f.Remaining()}
	if err := EncodeHeader(buf, h); err != nil {
		return nil, err
	}

	offset := HeaderSize
	for i := range f.bits {
		binary.NativeEndian.PutUint64(buf[offset:], f.bits[i].Load())
		offset += 8
	}
	return buf, nil
}

// WriteTo streams the persisted image of f to w.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	hdr := make([]byte, HeaderSize)
	h := Header{Capacity: f.capacity, ErrorRate: f.errorRate, Counter: f.Remaining()}
	if err := EncodeHeader(hdr, h); err != nil {
		return 0, err
	}
	n, err := bw.Write(hdr)
	written += int64(n)
	if err != nil {
		return written, err
	}

	var word [8]byte
	for i := range f.bits {
		binary.NativeEndian.PutUint64(word[:], f.bits[i].Load())
		n, err := bw.Write(word[:])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// UnmarshalBinary rebuilds a private filter from a persisted image, such as
// the contents of a shared filter file. The image length must match the
// geometry recorded in its header exactly.
func UnmarshalBinary(data []byte, opts ...Option) (*Filter, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	length := h.Words()
	if got, want := int64(len(data)), RegionSize(length); got != want {
		return nil, fmt.Errorf("%w: data length mismatch (got %d bytes, expected %d)", ErrFormatMismatch, got, want)
	}

	f, err := New(h.Capacity, h.ErrorRate, opts...)
	if err != nil {
		return nil, err
	}
	f.counter.Store(h.Counter)

	offset := HeaderSize
	for i := range f.bits {
		f.bits[i].Store(binary.NativeEndian.Uint64(data[offset:]))
		offset += 8
	}
	return f, nil
}

// ReadFrom reads a persisted image from r into a new private filter.
func ReadFrom(r io.Reader, opts ...Option) (*Filter, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: header truncated", ErrFormatMismatch)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrIO, err)
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return nil, err
	}

	// The bit array is read in full before New allocates one; a header alone
	// never allocates its claimed geometry.
	need := RegionSize(h.Words()) - int64(HeaderSize)
	body, err := io.ReadAll(io.LimitReader(r, need))
	if err != nil {
		return nil, fmt.Errorf("%w: read bits: %w", ErrIO, err)
	}
	if int64(len(body)) != need {
		return nil, fmt.Errorf("%w: bit array truncated (got %d bytes, need %d)", ErrFormatMismatch, len(body), need)
	}

	f, err := New(h.Capacity, h.ErrorRate, opts...)
	if err != nil {
		return nil, err
	}
	f.counter.Store(h.Counter)
	for i := range f.bits {
		f.bits[i].Store(binary.NativeEndian.Uint64(body[8*i:]))
	}
	return f, nil
}
