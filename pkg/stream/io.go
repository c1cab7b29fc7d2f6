// ABOUTME: Application-side block I/O for streams
// ABOUTME: Non-blocking Write/Read plus polling waits and software volume
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/tphakala/simd/f32"
)

// Write queues one playback block. It returns false when the output buffer
// is full; that is backpressure, not an error. Volume and mute are applied
// before encoding.
func (s *Stream) Write(block [][]float32) (bool, error) {
	out := s.out
	if out == nil {
		return false, fmt.Errorf("%w: no output buffer (state %s, %d output channels)",
			ErrInvalidState, s.State(), s.cfg.OutputChannels)
	}

	gain := s.gain()
	if gain == 1 {
		return out.WriteBlock(block)
	}
	channels, frames, err := audio.Shape(block)
	if err != nil || channels != len(s.scratch) || frames != s.cfg.BlockSize {
		// let the buffer report the shape error
		return out.WriteBlock(block)
	}
	for ch := range block {
		f32.Scale(s.scratch[ch], block[ch], gain)
	}
	return out.WriteBlock(s.scratch)
}

// Read dequeues one captured block into dst and returns its stamp.
// It returns false when nothing is ready.
func (s *Stream) Read(dst [][]float32) (clock.SampleTime, bool, error) {
	in := s.in
	if in == nil {
		return clock.SampleTime{}, false, fmt.Errorf("%w: no input buffer (state %s, %d input channels)",
			ErrInvalidState, s.State(), s.cfg.InputChannels)
	}
	return in.ReadBlock(dst)
}

// WriteWait retries Write, sleeping between attempts, until the block is
// queued or ctx is done
func (s *Stream) WriteWait(ctx context.Context, block [][]float32) error {
	for {
		ok, err := s.Write(block)
		if err != nil || ok {
			return err
		}
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
}

// ReadWait retries Read, sleeping between attempts, until a block arrives
// or ctx is done
func (s *Stream) ReadWait(ctx context.Context, dst [][]float32) (clock.SampleTime, error) {
	for {
		stamp, ok, err := s.Read(dst)
		if err != nil || ok {
			return stamp, err
		}
		if err := s.sleep(ctx); err != nil {
			return clock.SampleTime{}, err
		}
	}
}

func (s *Stream) sleep(ctx context.Context) error {
	t := time.NewTimer(s.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		return fmt.Errorf("%w: stream closed", ErrInvalidState)
	case <-t.C:
		return nil
	}
}

// SetVolume sets the playback volume (0-100)
func (s *Stream) SetVolume(volume int) {
	volume = clampVolume(volume)
	s.volume.Store(int32(volume))
	s.logger.Debug("Volume set", "volume", volume)
}

// SetMuted sets mute state
func (s *Stream) SetMuted(muted bool) {
	s.muted.Store(muted)
	s.logger.Debug("Mute set", "muted", muted)
}

// GetVolume returns current volume
func (s *Stream) GetVolume() int { return int(s.volume.Load()) }

// IsMuted returns mute state
func (s *Stream) IsMuted() bool { return s.muted.Load() }

func (s *Stream) gain() float32 {
	if s.muted.Load() {
		return 0
	}
	return float32(s.volume.Load()) / 100
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
