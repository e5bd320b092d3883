package shmbloom

import (
	"math/bits"

	"github.com/zeebo/xxh3"
)

// XXH64 primes.
const (
	prime1 uint64 = 11400714785074694791
	prime2 uint64 = 14029467366897019727
	prime3 uint64 = 1609587929392839161
	prime4 uint64 = 9650029242287828579
	prime5 uint64 = 2870177450012600261
)

// Mix is a 64-bit avalanche transform used to derive probe positions.
//
// It is XXH64 (seed 0) restricted to a single 8-byte lane, so Mix(x) equals
// the XXH64 digest of the native little-endian encoding of x. The first probe
// of a key uses Mix(keyHash); each further probe uses Mix of the previous one.
func Mix(k uint64) uint64 {
	h := prime5 + 8

	k *= prime2
	k = bits.RotateLeft64(k, 31)
	k *= prime1
	h ^= k
	h = bits.RotateLeft64(h, 27)*prime1 + prime4

	h ^= h >> 33
	h *= prime2
	h ^= h >> 29
	h *= prime3
	h ^= h >> 32
	return h
}

// HashBytes reduces an arbitrary key to the 64-bit key hash consumed by
// [Filter.InsertHash] and [Filter.TestHash].
func HashBytes(data []byte) uint64 {
	return xxh3.Hash(data)
}

// HashString is HashBytes for strings without the []byte conversion.
func HashString(s string) uint64 {
	return xxh3.HashString(s)
}
