//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package shmbloom

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// sharedBacking keeps the filter in a MAP_SHARED mapping of its file, so the
// counter and bit array are the same memory in every process that maps it.
type sharedBacking struct {
	region []byte
	count  *atomic.Uint64
	bits   []atomic.Uint64
}

var _ backing = (*sharedBacking)(nil)

func (b *sharedBacking) words() []atomic.Uint64  { return b.bits }
func (b *sharedBacking) counter() *atomic.Uint64 { return b.count }
func (b *sharedBacking) shared() bool            { return true }

func (b *sharedBacking) release() error {
	if b.region == nil {
		return nil
	}
	region := b.region
	b.region, b.count, b.bits = nil, nil, nil
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("%w: munmap: %w", ErrIO, err)
	}
	return nil
}

// OpenShared opens the filter stored in f, initializing f if it is empty.
//
// The first opener of an empty file writes the header and a zeroed bit array
// sized for capacity and errorRate. Later openers validate the header and
// adopt the geometry recorded in it; their capacity and errorRate arguments
// are ignored, though errorRate must still be valid. Creation and validation
// happen under an exclusive flock on f, which OpenShared waits for.
//
// f must be open for reading and writing. The returned filter maps the file
// and does not retain f, which the caller may close at any time.
func OpenShared(f *os.File, capacity uint64, errorRate float64, opts ...Option) (*Filter, error) {
	if _, err := ProbeCount(errorRate); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	log := o.logger.With(zap.String("path", f.Name()))

	fd := int(f.Fd())
	defer runtime.KeepAlive(f)

	h, created, err := prepareRegion(fd, capacity, errorRate)
	if err != nil {
		return nil, err
	}

	length := h.Words()
	size := RegionSize(length)
	region, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %w", ErrIO, size, err)
	}
	// Probes land on random words; readahead only wastes page cache.
	if err := unix.Madvise(region, unix.MADV_RANDOM); err != nil {
		log.Debug("madvise failed", zap.Error(err))
	}

	b := &sharedBacking{region: region}
	b.count, b.bits = regionViews(region, length)

	if created {
		log.Info("Created shared bloom filter",
			zap.Uint64("capacity", h.Capacity),
			zap.Float64("error_rate", h.ErrorRate),
			zap.Uint64("words", length))
	} else {
		log.Info("Opened shared bloom filter",
			zap.Uint64("capacity", h.Capacity),
			zap.Float64("error_rate", h.ErrorRate),
			zap.Uint64("words", length),
			zap.Uint64("remaining", b.count.Load()))
	}

	return newFilter(h.Capacity, h.ErrorRate, h.Probes(), length, b, o.logger), nil
}

// OpenFile opens or creates the filter file at path and maps it with
// OpenShared. The descriptor is closed before returning; the mapping stays
// valid until the filter is closed.
func OpenFile(path string, capacity uint64, errorRate float64, opts ...Option) (_ *Filter, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: close: %w", ErrIO, cerr))
		}
	}()
	return OpenShared(f, capacity, errorRate, opts...)
}

// prepareRegion makes sure fd holds a complete, valid filter image and
// returns its header. It holds an exclusive flock for its whole duration.
func prepareRegion(fd int, capacity uint64, errorRate float64) (h Header, created bool, err error) {
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return Header{}, false, fmt.Errorf("%w: flock: %w", ErrIO, err)
	}
	defer func() {
		if uerr := unix.Flock(fd, unix.LOCK_UN); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: unlock: %w", ErrIO, uerr))
		}
	}()

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return Header{}, false, fmt.Errorf("%w: fstat: %w", ErrIO, err)
	}

	if st.Size == 0 {
		h, err = initRegion(fd, capacity, errorRate)
		return h, err == nil, err
	}

	h, err = readRegionHeader(fd)
	if err != nil {
		return Header{}, false, err
	}
	if need := RegionSize(h.Words()); st.Size < need {
		return Header{}, false, fmt.Errorf("%w: file truncated (got %d bytes, need %d)", ErrFormatMismatch, st.Size, need)
	}
	return h, false, nil
}

// initRegion writes a fresh image into the empty file fd. On failure the file
// is truncated back to empty so the next opener initializes it again.
func initRegion(fd int, capacity uint64, errorRate float64) (h Header, err error) {
	h = Header{Capacity: capacity, ErrorRate: errorRate, Counter: capacity}
	length := h.Words()
	if length > maxWords {
		return Header{}, fmt.Errorf("%w: %d words requested", ErrAllocation, length)
	}

	defer func() {
		if err != nil {
			err = multierr.Append(err, unix.Ftruncate(fd, 0))
		}
	}()

	buf := make([]byte, HeaderSize)
	if err := EncodeHeader(buf, h); err != nil {
		return Header{}, err
	}
	if err := pwriteFull(fd, buf, 0); err != nil {
		return Header{}, fmt.Errorf("%w: write header: %w", ErrIO, err)
	}
	// Extending the file fills the bit array with zeros.
	if err := unix.Ftruncate(fd, RegionSize(length)); err != nil {
		return Header{}, fmt.Errorf("%w: ftruncate: %w", ErrIO, err)
	}
	return h, nil
}

func readRegionHeader(fd int) (Header, error) {
	buf := make([]byte, HeaderSize)
	n := 0
	for n < len(buf) {
		m, err := unix.Pread(fd, buf[n:], int64(n))
		if err != nil {
			return Header{}, fmt.Errorf("%w: read header: %w", ErrIO, err)
		}
		if m == 0 {
			break
		}
		n += m
	}
	return DecodeHeader(buf[:n])
}

func pwriteFull(fd int, buf []byte, off int64) error {
	for len(buf) > 0 {
		n, err := unix.Pwrite(fd, buf, off)
		if err != nil {
			return err
		}
		buf = buf[n:]
		off += int64(n)
	}
	return nil
}
