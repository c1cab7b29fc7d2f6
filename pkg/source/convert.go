// ABOUTME: Sample rate and channel layout adaptation for sources
// ABOUTME: Resamples at the source's channel count, then maps channels
package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/audio/resample"
)

const convertChunkFrames = 1024

// converted wraps a source to a target rate and channel count
type converted struct {
	src      Source
	rate     float64
	channels int
	rs       *resample.Resampler

	in      [][]float32
	pending [][]float32
	eof     bool
}

// Convert adapts src to the given rate and channel count. It returns src
// unchanged when nothing needs converting.
//
// Mono sources are copied to every channel, and multi-channel sources
// are averaged down to mono. Other layouts copy matching channels and
// leave the rest silent.
func Convert(src Source, rate float64, channels int, quality resample.Quality) (Source, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if src.SampleRate() == rate && src.Channels() == channels {
		return src, nil
	}

	c := &converted{
		src:      src,
		rate:     rate,
		channels: channels,
		in:       audio.NewBlock(src.Channels(), convertChunkFrames),
		pending:  make([][]float32, src.Channels()),
	}
	if src.SampleRate() != rate {
		rs, err := resample.New(src.SampleRate(), rate, src.Channels(), quality)
		if err != nil {
			return nil, err
		}
		c.rs = rs
	}
	return c, nil
}

func (c *converted) Read(block [][]float32) (int, error) {
	if len(block) != c.channels {
		return 0, fmt.Errorf("source has %d channels, block has %d", c.channels, len(block))
	}
	frames := len(block[0])

	for len(c.pending[0]) < frames && !c.eof {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}

	n := min(frames, len(c.pending[0]))
	if n == 0 {
		return 0, io.EOF
	}
	c.mapChannels(block, n)
	for ch, p := range c.pending {
		c.pending[ch] = append(p[:0], p[n:]...)
	}
	return n, nil
}

func (c *converted) fill() error {
	n, err := c.src.Read(c.in)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n > 0 {
		chunk := make([][]float32, len(c.in))
		for ch := range c.in {
			chunk[ch] = c.in[ch][:n]
		}
		if c.rs != nil {
			if chunk, err = c.rs.Process(chunk); err != nil {
				return err
			}
		}
		c.push(chunk)
	}
	if errors.Is(err, io.EOF) || n == 0 {
		c.eof = true
		if c.rs != nil {
			tail, ferr := c.rs.Flush()
			if ferr != nil {
				return ferr
			}
			c.push(tail)
		}
	}
	return nil
}

func (c *converted) push(chunk [][]float32) {
	for ch := range c.pending {
		c.pending[ch] = append(c.pending[ch], chunk[ch]...)
	}
}

func (c *converted) mapChannels(block [][]float32, n int) {
	in := len(c.pending)
	switch {
	case in == c.channels:
		for ch := range block {
			copy(block[ch][:n], c.pending[ch][:n])
		}
	case in == 1:
		for ch := range block {
			copy(block[ch][:n], c.pending[0][:n])
		}
	case c.channels == 1:
		dst := block[0][:n]
		clear(dst)
		for _, p := range c.pending {
			for i := range dst {
				dst[i] += p[i]
			}
		}
		for i := range dst {
			dst[i] /= float32(in)
		}
	default:
		for ch := range block {
			if ch < in {
				copy(block[ch][:n], c.pending[ch][:n])
			} else {
				clear(block[ch][:n])
			}
		}
	}
}

func (c *converted) SampleRate() float64 { return c.rate }
func (c *converted) Channels() int       { return c.channels }
func (c *converted) Name() string        { return c.src.Name() }
func (c *converted) Close() error        { return c.src.Close() }
