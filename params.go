package shmbloom

import (
	"fmt"
	"math"
)

const (
	// WordBits is the number of bits per storage word.
	WordBits = 64
	// ln2Squared is ln(2)^2.
	ln2Squared = math.Ln2 * math.Ln2
)

// ProbeCount returns the number of probes per key for the target false
// positive rate: ceil(log2(1/errorRate)).
//
// Rates outside the open interval (0, 1), and NaN, return ErrInvalidRate.
func ProbeCount(errorRate float64) (int32, error) {
	// Written so that NaN fails the check.
	if !(errorRate > 0 && errorRate < 1) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRate, errorRate)
	}
	// -log2(p) stays finite for subnormal rates, where 1/p overflows.
	k := int32(math.Ceil(-math.Log2(errorRate)))
	return max(k, 1), nil
}

// BitLength returns the size in bits of the bit array for capacity keys at
// errorRate: ceil(2 * n * |ln p|) / ln(2)^2, rounded up to a whole number of
// 64-bit words. The result is always a positive multiple of 64.
//
// errorRate is assumed valid; check it with ProbeCount first.
func BitLength(capacity uint64, errorRate float64) uint64 {
	numerator := math.Ceil(2 * float64(capacity) * math.Abs(math.Log(errorRate)))
	m := math.Ceil(numerator / ln2Squared)

	// Saturate rather than wrap; geometry this large is rejected later anyway.
	if m >= math.MaxUint64-WordBits {
		return math.MaxUint64 &^ (WordBits - 1)
	}

	bitCount := max(uint64(m), WordBits)
	if rem := bitCount % WordBits; rem != 0 {
		bitCount += WordBits - rem
	}
	return bitCount
}

// WordLength returns the number of 64-bit words backing a filter with the
// given capacity and error rate. It is at least 1.
func WordLength(capacity uint64, errorRate float64) uint64 {
	return BitLength(capacity, errorRate) / WordBits
}

// EstimateFalsePositiveRate estimates the false positive rate for a filter of
// words 64-bit words probed k times per key after items insertions.
// Formula: (1 - e^(-kn/m))^k
func EstimateFalsePositiveRate(words uint64, k int32, itemsAdded uint64) float64 {
	m := float64(words * WordBits)
	n := float64(itemsAdded)
	kf := float64(k)

	if m == 0 || n == 0 {
		return 0
	}

	return math.Pow(1-math.Exp(-kf*n/m), kf)
}
