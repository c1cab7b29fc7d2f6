// ABOUTME: Shared de-interleaving reader for decoded file sources
// ABOUTME: Decoders hand over interleaved chunks; blocks are filled from them
package source

import (
	"fmt"
	"io"
)

// chunkReader serves planar blocks from interleaved chunks produced by next
type chunkReader struct {
	channels int
	next     func() ([]float32, error)

	buf []float32
	pos int
	err error
}

func (r *chunkReader) read(block [][]float32) (int, error) {
	if len(block) != r.channels {
		return 0, fmt.Errorf("source has %d channels, block has %d", r.channels, len(block))
	}
	frames := len(block[0])
	n := 0
	for n < frames {
		if r.pos >= len(r.buf) {
			if r.err != nil {
				break
			}
			chunk, err := r.next()
			r.buf, r.pos = chunk, 0
			if err != nil {
				r.err = err
			} else if len(chunk) == 0 {
				r.err = io.ErrNoProgress
			}
			continue
		}
		for n < frames && r.pos+r.channels <= len(r.buf) {
			for ch := range block {
				block[ch][n] = r.buf[r.pos+ch]
			}
			r.pos += r.channels
			n++
		}
		if r.pos+r.channels > len(r.buf) {
			// drop a trailing partial frame
			r.pos = len(r.buf)
		}
	}
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}
