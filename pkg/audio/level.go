// ABOUTME: Signal level measurement for planar blocks
// ABOUTME: RMS and peak values used by the monitor and player stats
package audio

import (
	"math"

	"github.com/tphakala/simd/f32"
)

// RMS returns the root mean square of samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := f32.DotProductUnsafe(samples, samples)
	return math.Sqrt(float64(sum) / float64(len(samples)))
}

// BlockRMS returns the RMS of every channel in block
func BlockRMS(block [][]float32) []float64 {
	out := make([]float64, len(block))
	for ch, samples := range block {
		out[ch] = RMS(samples)
	}
	return out
}

// Peak returns the largest absolute sample value
func Peak(samples []float32) float64 {
	var peak float64
	for _, v := range samples {
		peak = max(peak, math.Abs(float64(v)))
	}
	return peak
}

// Decibels converts a linear level to dBFS; silence maps to -Inf
func Decibels(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}
