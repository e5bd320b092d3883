package shmbloom

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeCount(t *testing.T) {
	tests := []struct {
		rate  float64
		wantK int32
	}{
		{0.5, 1},
		{0.25, 2},
		{0.2, 3},
		{0.1, 4},
		{0.01, 7},
		{0.001, 10},
		{0.0000001, 24},
		{0.9, 1},
		{1e-300, 997},
		{1e-310, 1030},
		{5e-324, 1074},
	}
	for _, tt := range tests {
		k, err := ProbeCount(tt.rate)
		require.NoError(t, err)
		require.Equal(t, tt.wantK, k, "rate=%v", tt.rate)
	}
}

func TestProbeCountInvalid(t *testing.T) {
	for _, rate := range []float64{0, -0.01, 1, 1.0001, 2, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ProbeCount(rate)
		require.ErrorIs(t, err, ErrInvalidRate, "rate=%v", rate)
	}
}

func TestBitLength(t *testing.T) {
	tests := []struct {
		capacity uint64
		rate     float64
		want     uint64
	}{
		{0, 0.01, 64},
		{1, 0.5, 64},
		{100, 0.5, 320},
		{100, 0.01, 1920},
		{1000, 0.01, 19200},
		{50, 0.001, 1472},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, BitLength(tt.capacity, tt.rate), "capacity=%d rate=%v", tt.capacity, tt.rate)
		require.Equal(t, tt.want/64, WordLength(tt.capacity, tt.rate))
	}
}

func TestBitLengthMultipleOf64(t *testing.T) {
	for _, rate := range []float64{0.5, 0.3, 0.1, 0.05, 0.01, 0.001, 1e-6, 1e-12} {
		prev := uint64(0)
		for _, capacity := range []uint64{0, 1, 2, 3, 7, 63, 64, 65, 100, 999, 1000, 12345, 1 << 20, 1 << 32} {
			t.Run(fmt.Sprintf("n=%d_p=%g", capacity, rate), func(t *testing.T) {
				m := BitLength(capacity, rate)
				require.NotZero(t, m)
				require.Zero(t, m%64)
				require.GreaterOrEqual(t, m, prev, "bit length must not shrink as capacity grows")

				// Never smaller than the unrounded formula.
				exact := math.Ceil(2*float64(capacity)*math.Abs(math.Log(rate))) / (math.Ln2 * math.Ln2)
				require.GreaterOrEqual(t, float64(m), exact)
				require.Less(t, float64(m), math.Max(exact, 1)+64)
				prev = m
			})
		}
	}
}

func TestBitLengthSaturates(t *testing.T) {
	m := BitLength(math.MaxUint64, 1e-300)
	require.Equal(t, uint64(math.MaxUint64&^63), m)
	require.Greater(t, m/64, maxWords)

	_, err := New(math.MaxUint64, 1e-300)
	require.ErrorIs(t, err, ErrAllocation)
}

func TestEstimateFalsePositiveRate(t *testing.T) {
	words := uint64(300)
	k := int32(7)
	items := uint64(1000)

	estimated := EstimateFalsePositiveRate(words, k, items)

	// Manual calculation: (1 - e^(-kn/m))^k
	m := float64(words * 64)
	n := float64(items)
	kf := float64(k)
	expected := math.Pow(1-math.Exp(-kf*n/m), kf)

	require.InDelta(t, expected, estimated, 1e-12)
	require.Less(t, estimated, 0.01)
}

func TestEstimateFalsePositiveRateEdgeCases(t *testing.T) {
	require.Zero(t, EstimateFalsePositiveRate(0, 7, 100))
	require.Zero(t, EstimateFalsePositiveRate(100, 7, 0))
	require.InDelta(t, 1.0, EstimateFalsePositiveRate(1, 1, 1_000_000), 1e-9)
}
