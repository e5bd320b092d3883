// Package shmbloom provides a Bloom filter that can live in process memory or
// in a memory-mapped file shared by several processes.
//
// A bloom filter is a space-efficient probabilistic data structure that tests
// whether an element is a member of a set. False positive matches are possible,
// but false negatives are not – if the filter says an element is not present,
// it definitely is not (for elements inserted since the last clear).
//
// # Backings
//
// [New] allocates a private filter on the Go heap.
//
// [OpenShared] and [OpenFile] map a filter file with MAP_SHARED. Every
// process that opens the same file reads and writes the same bits and the
// same insertion counter, with no broker process in between. The first
// opener of an empty file initializes it under an exclusive flock; later
// openers validate the header and adopt the geometry recorded there, so
// processes always agree on the layout even when they pass different
// parameters.
//
// Both backings behave identically once constructed.
//
// # Hashing
//
// The engine works on 64-bit key hashes. [Filter.Add], [Filter.Test] and
// their string variants hash keys with xxh3; [Filter.InsertHash] and
// [Filter.TestHash] accept a hash computed by the caller. Probe positions are
// derived by iterating [Mix], an XXH64-style avalanche, over the key hash:
// one hash yields as many independent-looking probes as needed.
//
// # Choosing Parameters
//
// Filters are sized from a capacity and a target false positive rate p:
//
//	probes = ceil(log2(1/p))
//	bits   = ceil(2 * capacity * |ln p|) / ln(2)², rounded up to 64
//
// Example: 1 million keys at 1% ≈ 2.4 MB, 7 probes.
//
// # Capacity and saturation
//
// Each filter carries a counter of remaining inserts, starting at capacity.
// The insert that finds the counter exhausted clears the filter, resets the
// counter and then records its own key; [Filter.InsertHash] reports true for
// that insert. The filter therefore never exceeds its designed false positive
// rate, at the cost of forgetting everything inserted before the reset.
//
// # File format
//
// A shared filter file is a 48 byte header followed by the bit array:
//
//	+----------------------------+  0
//	| magic (24 bytes)           |
//	+----------------------------+  24
//	| capacity (uint64)          |
//	+----------------------------+  32
//	| error rate (float64)       |
//	+----------------------------+  40
//	| remaining counter (uint64) |
//	+----------------------------+  48
//	| bit array (words × 8)      |
//	+----------------------------+
//
// Fields use host byte order since the counter and bits are updated in place
// with native atomics; files are not portable across byte orders.
//
// # Thread Safety
//
// All operations except Close are safe for concurrent use from goroutines and
// from other processes. Bits are set with atomic OR and read with atomic
// loads. [Filter.Clear] zeroes words one at a time and resets the counter
// last; an insert or test running concurrently may observe a partly cleared
// filter.
package shmbloom
