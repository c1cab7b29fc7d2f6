// ABOUTME: Lock-free ring buffer of audio blocks
// ABOUTME: Hands native-format blocks between a real-time callback and the application
package buffer

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
)

// Direction selects the side of the buffer a Ready check applies to
type Direction int

const (
	// Fill checks for a free slot to produce into
	Fill Direction = iota
	// Drain checks for a ready slot to consume from
	Drain
)

func (d Direction) String() string {
	if d == Fill {
		return "fill"
	}
	return "drain"
}

// Slot states. A slot only moves forward through this cycle.
const (
	slotFree uint32 = iota
	slotFilling
	slotReady
	slotDraining
)

// DefaultBlocks is the slot count used when Config.Blocks is zero
const DefaultBlocks = 8

// ErrInvalidConfig is returned by New for unusable buffer geometry
var ErrInvalidConfig = errors.New("invalid buffer config")

// Config describes the geometry of a SampleBuffer
type Config struct {
	Format     audio.SampleFormat
	Channels   int
	BlockSize  int
	Blocks     int
	SampleRate float64
}

type slot struct {
	state atomic.Uint32
	data  []byte
	stamp clock.SampleTime
}

// SampleBuffer is a bounded FIFO of audio blocks.
//
// There is exactly one producer and one consumer. Either side may be the
// real-time thread: the producer uses WriteBlock or WriteRaw, the consumer
// ReadBlock or ReadRaw. Slots change hands through atomic state
// transitions only, so neither side blocks or allocates.
type SampleBuffer struct {
	cfg       Config
	slotBytes int
	slots     []slot

	writeIdx atomic.Uint64 // next slot to fill, producer-owned
	readIdx  atomic.Uint64 // next slot to drain, consumer-owned

	writeSamples atomic.Int64 // producer cursor in samples
	readSamples  atomic.Int64 // consumer cursor in samples
	timeOffset   atomic.Uint64

	base clock.SampleTime
}

// New allocates a buffer and all of its slots
func New(cfg Config) (*SampleBuffer, error) {
	if !cfg.Format.Valid() {
		return nil, fmt.Errorf("%w: %d", audio.ErrUnsupportedFormat, uint8(cfg.Format))
	}
	if cfg.Blocks == 0 {
		cfg.Blocks = DefaultBlocks
	}
	if cfg.Channels <= 0 || cfg.Blocks < 0 {
		return nil, fmt.Errorf("%w: channels=%d blocks=%d", ErrInvalidConfig, cfg.Channels, cfg.Blocks)
	}
	base, err := clock.New(cfg.SampleRate, cfg.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	b := &SampleBuffer{
		cfg:       cfg,
		slotBytes: audio.BlockBytes(cfg.Format, cfg.Channels, cfg.BlockSize),
		slots:     make([]slot, cfg.Blocks),
		base:      base,
	}
	arena := make([]byte, b.slotBytes*cfg.Blocks)
	for i := range b.slots {
		b.slots[i].data = arena[i*b.slotBytes : (i+1)*b.slotBytes : (i+1)*b.slotBytes]
	}
	return b, nil
}

func (b *SampleBuffer) Config() Config             { return b.cfg }
func (b *SampleBuffer) Format() audio.SampleFormat { return b.cfg.Format }
func (b *SampleBuffer) Channels() int              { return b.cfg.Channels }
func (b *SampleBuffer) BlockSize() int             { return b.cfg.BlockSize }

// BlockBytes returns the native size of one block
func (b *SampleBuffer) BlockBytes() int { return b.slotBytes }

// Cap returns the number of slots
func (b *SampleBuffer) Cap() int { return len(b.slots) }

// Len returns the number of blocks written but not yet fully read
func (b *SampleBuffer) Len() int {
	r := b.readIdx.Load()
	w := b.writeIdx.Load()
	return int(w - r)
}

// Ready reports without blocking whether a slot is available in direction d
func (b *SampleBuffer) Ready(d Direction) bool {
	if d == Fill {
		return b.slotAt(b.writeIdx.Load()).state.Load() == slotFree
	}
	return b.slotAt(b.readIdx.Load()).state.Load() == slotReady
}

// SetTimeOffset sets the offset stamped on blocks that become ready from now on
func (b *SampleBuffer) SetTimeOffset(offset float64) {
	b.timeOffset.Store(math.Float64bits(offset))
}

// TimeOffset returns the current stamp offset
func (b *SampleBuffer) TimeOffset() float64 {
	return math.Float64frombits(b.timeOffset.Load())
}

// WriteTime returns the position the next written block will be stamped with
func (b *SampleBuffer) WriteTime() clock.SampleTime {
	return b.base.WithSampleIndex(b.writeSamples.Load()).WithTimeOffset(b.TimeOffset())
}

// ReadTime returns the position following the last block read
func (b *SampleBuffer) ReadTime() clock.SampleTime {
	return b.base.WithSampleIndex(b.readSamples.Load()).WithTimeOffset(b.TimeOffset())
}

// WriteBlock encodes block into the next free slot.
// It returns false without touching any slot when the buffer is full.
// Shape errors are reported before a slot is claimed.
func (b *SampleBuffer) WriteBlock(block [][]float32) (bool, error) {
	if err := b.checkShape(block); err != nil {
		return false, err
	}
	s, ok := b.claim(b.writeIdx.Load(), slotFree, slotFilling)
	if !ok {
		return false, nil
	}
	if err := audio.Encode(s.data, block, b.cfg.Format); err != nil {
		// shape was checked above; give the slot back untouched
		s.state.Store(slotFree)
		return false, err
	}
	b.publish(s)
	return true, nil
}

// WriteRaw copies one native-format block into the next free slot.
// It returns false if the buffer is full or src is not exactly one block.
func (b *SampleBuffer) WriteRaw(src []byte) bool {
	if len(src) != b.slotBytes {
		return false
	}
	s, ok := b.claim(b.writeIdx.Load(), slotFree, slotFilling)
	if !ok {
		return false
	}
	copy(s.data, src)
	b.publish(s)
	return true
}

// SkipWrite moves the producer cursor past frames that never reached a
// slot, so the next published block is stamped at its true position.
// Only the producer may call it.
func (b *SampleBuffer) SkipWrite(frames int) {
	b.writeSamples.Add(int64(frames))
}

// ReadBlock decodes the oldest ready block into dst and returns its stamp.
// It returns false without touching any slot when the buffer is empty.
func (b *SampleBuffer) ReadBlock(dst [][]float32) (clock.SampleTime, bool, error) {
	if err := b.checkShape(dst); err != nil {
		return clock.SampleTime{}, false, err
	}
	s, ok := b.claim(b.readIdx.Load(), slotReady, slotDraining)
	if !ok {
		return clock.SampleTime{}, false, nil
	}
	err := audio.Decode(dst, s.data, b.cfg.Format)
	stamp := b.release(s)
	return stamp, true, err
}

// ReadRaw copies the oldest ready block into dst and returns its stamp.
// It returns false if the buffer is empty or dst is not exactly one block.
func (b *SampleBuffer) ReadRaw(dst []byte) (clock.SampleTime, bool) {
	if len(dst) != b.slotBytes {
		return clock.SampleTime{}, false
	}
	s, ok := b.claim(b.readIdx.Load(), slotReady, slotDraining)
	if !ok {
		return clock.SampleTime{}, false
	}
	copy(dst, s.data)
	return b.release(s), true
}

func (b *SampleBuffer) slotAt(idx uint64) *slot {
	return &b.slots[idx%uint64(len(b.slots))]
}

func (b *SampleBuffer) claim(idx uint64, from, to uint32) (*slot, bool) {
	s := b.slotAt(idx)
	if !s.state.CompareAndSwap(from, to) {
		return nil, false
	}
	return s, true
}

// publish stamps a filled slot and hands it to the consumer
func (b *SampleBuffer) publish(s *slot) {
	s.stamp = b.WriteTime()
	b.writeSamples.Add(int64(b.cfg.BlockSize))
	b.writeIdx.Add(1)
	s.state.Store(slotReady)
}

// release returns a drained slot to the producer
func (b *SampleBuffer) release(s *slot) clock.SampleTime {
	stamp := s.stamp
	b.readSamples.Add(int64(b.cfg.BlockSize))
	b.readIdx.Add(1)
	s.state.Store(slotFree)
	return stamp
}

func (b *SampleBuffer) checkShape(block [][]float32) error {
	channels, frames, err := audio.Shape(block)
	if err != nil {
		return err
	}
	if channels != b.cfg.Channels || frames != b.cfg.BlockSize {
		return fmt.Errorf("%w: block is %dx%d, buffer expects %dx%d",
			audio.ErrSizeMismatch, channels, frames, b.cfg.Channels, b.cfg.BlockSize)
	}
	return nil
}
