// ABOUTME: Generated sine tone source
// ABOUTME: Mixes one or more frequencies with a per-channel sample delay
package source

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tphakala/simd/f32"
)

// ToneConfig describes a generated tone
type ToneConfig struct {
	Frequencies []float64
	Amplitude   float32
	SampleRate  float64
	Channels    int
	// ChannelDelay delays each channel by ch*ChannelDelay samples
	ChannelDelay int
}

// Tone generates a mix of sine waves; it never ends
type Tone struct {
	cfg         ToneConfig
	sampleIndex int64
	mu          sync.Mutex
}

// NewTone creates a tone source
func NewTone(cfg ToneConfig) (*Tone, error) {
	if len(cfg.Frequencies) == 0 {
		return nil, fmt.Errorf("tone needs at least one frequency")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", cfg.Channels)
	}
	for _, f := range cfg.Frequencies {
		if f <= 0 || f >= cfg.SampleRate/2 {
			return nil, fmt.Errorf("frequency %v Hz outside (0, %v)", f, cfg.SampleRate/2)
		}
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.5
	}
	return &Tone{cfg: cfg}, nil
}

// Read implements Source.Read
func (t *Tone) Read(block [][]float32) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(block) != t.cfg.Channels {
		return 0, fmt.Errorf("tone has %d channels, block has %d", t.cfg.Channels, len(block))
	}
	frames := len(block[0])
	gain := t.cfg.Amplitude / float32(len(t.cfg.Frequencies))

	for ch := range block {
		start := t.sampleIndex - int64(ch*t.cfg.ChannelDelay)
		dst := block[ch][:frames]
		for i := range dst {
			n := float64(start + int64(i))
			var v float64
			for _, f := range t.cfg.Frequencies {
				v += math.Sin(2 * math.Pi * f * n / t.cfg.SampleRate)
			}
			dst[i] = float32(v)
		}
		f32.Scale(dst, dst, gain)
	}

	t.sampleIndex += int64(frames)
	return frames, nil
}

func (t *Tone) SampleRate() float64 { return t.cfg.SampleRate }
func (t *Tone) Channels() int       { return t.cfg.Channels }

func (t *Tone) Name() string {
	parts := make([]string, len(t.cfg.Frequencies))
	for i, f := range t.cfg.Frequencies {
		parts[i] = fmt.Sprintf("%g Hz", f)
	}
	return "tone " + strings.Join(parts, " + ")
}

func (t *Tone) Close() error { return nil }
