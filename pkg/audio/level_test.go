// ABOUTME: Tests for level measurement and integer quantization helpers
// ABOUTME: Compares against closed-form values for sines and constants
package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-7)

	sig := buildSignal(48000, 4800, 1, 1000, 0.9)
	// 0.9 amplitude sine over whole periods
	assert.InDelta(t, 0.9/math.Sqrt2, RMS(sig[0]), 1e-4)

	levels := BlockRMS([][]float32{{1, 1}, {0, 0}})
	assert.InDeltaSlice(t, []float64{1, 0}, levels, 1e-7)
}

func TestPeakAndDecibels(t *testing.T) {
	assert.Equal(t, 0.75, Peak([]float32{0.25, -0.75, 0.5}))
	assert.InDelta(t, 0, Decibels(1), 1e-12)
	assert.InDelta(t, -6.0206, Decibels(0.5), 1e-4)
	assert.True(t, math.IsInf(Decibels(0), -1))
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt16), Quantize(1, Int16))
	assert.Equal(t, int64(math.MinInt16), Quantize(-1, Int16))
	assert.Equal(t, int64(Max24Bit), Quantize(2, Int24))
	assert.Equal(t, int64(1<<30), Quantize(0.5, Int32))
	assert.Equal(t, int64(-64), Quantize(-0.5, Uint8))
	assert.Zero(t, Quantize(0.5, Float32))
}

func TestIntFormat(t *testing.T) {
	for bits, want := range map[int]SampleFormat{8: Int8, 16: Int16, 24: Int24, 32: Int32} {
		got, err := IntFormat(bits)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := IntFormat(12)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
