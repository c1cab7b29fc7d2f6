// ABOUTME: Codec between float32 sample blocks and native binary layouts
// ABOUTME: Pack/Unpack allocate; Encode/Decode work in caller-owned memory
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrSizeMismatch is returned when a byte buffer or block shape does not
// match channels*frames*byte_width
var ErrSizeMismatch = errors.New("sample buffer size mismatch")

// NewBlock allocates a [channels][frames] matrix backed by one array
func NewBlock(channels, frames int) [][]float32 {
	backing := make([]float32, channels*frames)
	block := make([][]float32, channels)
	for ch := range block {
		block[ch] = backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}
	return block
}

// ClearBlock zeroes every sample in block
func ClearBlock(block [][]float32) {
	for _, samples := range block {
		clear(samples)
	}
}

// BlockBytes returns the encoded size of a block in format f
func BlockBytes(f SampleFormat, channels, frames int) int {
	return channels * frames * f.ByteWidth()
}

// SilenceByte returns the byte value that encodes 0.0 in f.
// Every format encodes silence as a repeated single byte.
func SilenceByte(f SampleFormat) byte {
	if f == Uint8 {
		return 0x80
	}
	return 0
}

// FillSilence writes encoded silence for format f into dst
func FillSilence(dst []byte, f SampleFormat) {
	b := SilenceByte(f)
	if b == 0 {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = b
	}
}

// Shape returns the channel and frame counts of block.
// Ragged matrices are rejected with ErrSizeMismatch.
func Shape(block [][]float32) (channels, frames int, err error) {
	channels = len(block)
	if channels == 0 {
		return 0, 0, nil
	}
	frames = len(block[0])
	for ch := 1; ch < channels; ch++ {
		if len(block[ch]) != frames {
			return 0, 0, fmt.Errorf("%w: channel %d has %d frames, want %d",
				ErrSizeMismatch, ch, len(block[ch]), frames)
		}
	}
	return channels, frames, nil
}

func checkSize(n int, f SampleFormat, channels, frames int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, uint8(f))
	}
	if want := BlockBytes(f, channels, frames); n != want {
		return fmt.Errorf("%w: got %d bytes, want %d (%d channels x %d frames x %d bytes)",
			ErrSizeMismatch, n, want, channels, frames, f.ByteWidth())
	}
	return nil
}

// Pack encodes block into a newly allocated byte slice
func Pack(block [][]float32, f SampleFormat) ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, uint8(f))
	}
	channels, frames, err := Shape(block)
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockBytes(f, channels, frames))
	if err := Encode(out, block, f); err != nil {
		return nil, err
	}
	return out, nil
}

// Unpack decodes src into a newly allocated [channels][frames] matrix
func Unpack(src []byte, f SampleFormat, channels, frames int) ([][]float32, error) {
	if channels < 0 || frames < 0 {
		return nil, fmt.Errorf("%w: negative shape %dx%d", ErrSizeMismatch, channels, frames)
	}
	if err := checkSize(len(src), f, channels, frames); err != nil {
		return nil, err
	}
	block := NewBlock(channels, frames)
	if err := Decode(block, src, f); err != nil {
		return nil, err
	}
	return block, nil
}

// Encode writes block into dst using the frame-interleaved layout of f.
// It does not allocate.
func Encode(dst []byte, block [][]float32, f SampleFormat) error {
	channels, frames, err := Shape(block)
	if err != nil {
		return err
	}
	if err := checkSize(len(dst), f, channels, frames); err != nil {
		return err
	}

	bw := f.ByteWidth()
	mult := f.Multiplier()
	for ch, samples := range block {
		for i, v := range samples {
			off := (i*channels + ch) * bw
			switch f {
			case Float32:
				binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
			case Int32:
				q := quantize(v, mult, math.MinInt32, math.MaxInt32)
				binary.LittleEndian.PutUint32(dst[off:], uint32(int32(q)))
			case Int24:
				b := SampleTo24Bit(int32(quantize(v, mult, Min24Bit, Max24Bit)))
				dst[off], dst[off+1], dst[off+2] = b[0], b[1], b[2]
			case Int16:
				q := quantize(v, mult, math.MinInt16, math.MaxInt16)
				binary.LittleEndian.PutUint16(dst[off:], uint16(int16(q)))
			case Int8:
				dst[off] = byte(int8(quantize(v, mult, math.MinInt8, math.MaxInt8)))
			case Uint8:
				dst[off] = byte(quantize(v, mult, math.MinInt8, math.MaxInt8) + 128)
			}
		}
	}
	return nil
}

// Decode reads src (frame-interleaved, format f) into dst.
// The shape of dst determines the channel and frame counts.
// It does not allocate.
func Decode(dst [][]float32, src []byte, f SampleFormat) error {
	channels, frames, err := Shape(dst)
	if err != nil {
		return err
	}
	if err := checkSize(len(src), f, channels, frames); err != nil {
		return err
	}

	bw := f.ByteWidth()
	mult := f.Multiplier()
	for ch, samples := range dst {
		for i := range samples {
			off := (i*channels + ch) * bw
			var q int32
			switch f {
			case Float32:
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[off:]))
				continue
			case Int32:
				q = int32(binary.LittleEndian.Uint32(src[off:]))
			case Int24:
				q = SampleFrom24Bit([3]byte{src[off], src[off+1], src[off+2]})
			case Int16:
				q = int32(int16(binary.LittleEndian.Uint16(src[off:])))
			case Int8:
				q = int32(int8(src[off]))
			case Uint8:
				q = int32(src[off]) - 128
			}
			samples[i] = float32(float64(q) / mult)
		}
	}
	return nil
}

// quantize scales v by mult after clamping to [-1, 1] and rounds to the
// nearest integer within [lo, hi]. NaN encodes as zero.
func quantize(v float32, mult float64, lo, hi int64) int64 {
	x := float64(v)
	switch {
	case math.IsNaN(x):
		return 0
	case x > 1:
		x = 1
	case x < -1:
		x = -1
	}
	q := int64(math.Round(x * mult))
	if q > hi {
		return hi
	}
	if q < lo {
		return lo
	}
	return q
}

// Quantize converts v to the integer scale of f, as Encode would.
// Uint8 is returned centered on zero; Float32 returns 0.
func Quantize(v float32, f SampleFormat) int64 {
	mult := f.Multiplier()
	switch f {
	case Int32:
		return quantize(v, mult, math.MinInt32, math.MaxInt32)
	case Int24:
		return quantize(v, mult, Min24Bit, Max24Bit)
	case Int16:
		return quantize(v, mult, math.MinInt16, math.MaxInt16)
	case Int8, Uint8:
		return quantize(v, mult, math.MinInt8, math.MaxInt8)
	default:
		return 0
	}
}

// IntFormat returns the signed integer format for a PCM bit depth
func IntFormat(bitDepth int) (SampleFormat, error) {
	switch bitDepth {
	case 8:
		return Int8, nil
	case 16:
		return Int16, nil
	case 24:
		return Int24, nil
	case 32:
		return Int32, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit integer", ErrUnsupportedFormat, bitDepth)
	}
}
