//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd)

package shmbloom

import "os"

// OpenShared is not available on this platform.
func OpenShared(f *os.File, capacity uint64, errorRate float64, opts ...Option) (*Filter, error) {
	return nil, ErrUnsupported
}

// OpenFile is not available on this platform.
func OpenFile(path string, capacity uint64, errorRate float64, opts ...Option) (*Filter, error) {
	return nil, ErrUnsupported
}
