package shmbloom

import "errors"

var (
	// ErrInvalidRate is returned when a false positive rate is outside (0, 1).
	ErrInvalidRate = errors.New("shmbloom: error rate must be in (0, 1)")

	// ErrIO is returned when a stat, read, write, lock or map of the backing
	// file fails while opening a shared filter.
	ErrIO = errors.New("shmbloom: i/o failure")

	// ErrFormatMismatch is returned when a backing file is not a filter image
	// this package understands: wrong magic, truncated, or carrying invalid
	// persisted parameters.
	ErrFormatMismatch = errors.New("shmbloom: incompatible or corrupt filter file")

	// ErrAllocation is returned when the requested geometry cannot be
	// allocated or addressed.
	ErrAllocation = errors.New("shmbloom: filter too large")

	// ErrUnsupported is returned by the shared backing on platforms without
	// mmap and flock.
	ErrUnsupported = errors.New("shmbloom: shared filters are not supported on this platform")
)
