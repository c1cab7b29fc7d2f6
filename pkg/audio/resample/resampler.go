// ABOUTME: Multi-channel resampler over planar float32 blocks
// ABOUTME: Keeps channel outputs aligned when engines emit uneven lengths
package resample

import (
	"errors"
	"fmt"
	"strings"

	resampler "github.com/tphakala/go-audio-resampler"
)

// Quality selects the filter design
type Quality = resampler.QualityPreset

const (
	QualityQuick    = resampler.QualityQuick
	QualityLow      = resampler.QualityLow
	QualityMedium   = resampler.QualityMedium
	QualityHigh     = resampler.QualityHigh
	QualityVeryHigh = resampler.QualityVeryHigh
)

// ParseQuality resolves a quality preset by name
func ParseQuality(name string) (Quality, error) {
	switch strings.ToLower(name) {
	case "quick":
		return QualityQuick, nil
	case "low":
		return QualityLow, nil
	case "medium", "":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	case "veryhigh", "very-high":
		return QualityVeryHigh, nil
	default:
		return QualityMedium, fmt.Errorf("unknown resampler quality %q (quick, low, medium, high, veryhigh)", name)
	}
}

// ErrChannelMismatch is returned when a block's channel count differs from the resampler's
var ErrChannelMismatch = errors.New("channel count mismatch")

// Resampler converts planar audio from one rate to another
type Resampler struct {
	inputRate  float64
	outputRate float64
	engines    []*resampler.SimpleResamplerFloat32

	// samples produced by one channel ahead of the slowest one
	pending [][]float32
}

// New creates a resampler for the given channel count
func New(inputRate, outputRate float64, channels int, quality Quality) (*Resampler, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %v -> %v", inputRate, outputRate)
	}

	r := &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		engines:    make([]*resampler.SimpleResamplerFloat32, channels),
		pending:    make([][]float32, channels),
	}
	for ch := range r.engines {
		e, err := resampler.NewEngineFloat32(inputRate, outputRate, quality)
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler for channel %d: %w", ch, err)
		}
		r.engines[ch] = e
	}
	return r, nil
}

func (r *Resampler) InputRate() float64  { return r.inputRate }
func (r *Resampler) OutputRate() float64 { return r.outputRate }
func (r *Resampler) Channels() int       { return len(r.engines) }

// Ratio returns outputRate / inputRate
func (r *Resampler) Ratio() float64 {
	return r.outputRate / r.inputRate
}

// Process resamples one planar block. The result has the same channel
// count; its length may be zero while the filters fill.
func (r *Resampler) Process(block [][]float32) ([][]float32, error) {
	if len(block) != len(r.engines) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChannelMismatch, len(block), len(r.engines))
	}
	return r.run(func(ch int) ([]float32, error) {
		return r.engines[ch].Process(block[ch])
	})
}

// Flush drains the filter tails
func (r *Resampler) Flush() ([][]float32, error) {
	out, err := r.run(func(ch int) ([]float32, error) {
		return r.engines[ch].Flush()
	})
	if err != nil {
		return nil, err
	}
	// nothing follows a flush, so emit any stragglers zero-padded
	n := 0
	for _, p := range r.pending {
		n = max(n, len(p))
	}
	if n > 0 {
		for ch := range out {
			tail := make([]float32, n)
			copy(tail, r.pending[ch])
			out[ch] = append(out[ch], tail...)
			r.pending[ch] = r.pending[ch][:0]
		}
	}
	return out, nil
}

// Reset clears all filter state
func (r *Resampler) Reset() {
	for ch, e := range r.engines {
		e.Reset()
		r.pending[ch] = r.pending[ch][:0]
	}
}

func (r *Resampler) run(step func(ch int) ([]float32, error)) ([][]float32, error) {
	for ch := range r.engines {
		samples, err := step(ch)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		r.pending[ch] = append(r.pending[ch], samples...)
	}

	n := len(r.pending[0])
	for _, p := range r.pending[1:] {
		n = min(n, len(p))
	}

	out := make([][]float32, len(r.engines))
	for ch, p := range r.pending {
		out[ch] = append([]float32(nil), p[:n]...)
		r.pending[ch] = append(p[:0], p[n:]...)
	}
	return out, nil
}
