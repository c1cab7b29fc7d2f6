// ABOUTME: Stream configuration and validation
// ABOUTME: Defines the recognized "Invalid sample rate" rejection
package stream

import (
	"errors"
	"fmt"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/buffer"
)

var (
	// ErrInvalidSampleRate is the engine's rejection of a sample rate.
	// Callers are expected to special-case it; see IsInvalidSampleRate.
	ErrInvalidSampleRate = errors.New("Invalid sample rate") //nolint:staticcheck // message text is matched verbatim

	// ErrInvalidConfig is returned for unusable stream parameters
	ErrInvalidConfig = errors.New("invalid stream config")

	// ErrInvalidState is returned when a lifecycle call does not fit the current state
	ErrInvalidState = errors.New("invalid stream state")
)

// IsInvalidSampleRate reports whether err is a sample rate rejection,
// either ErrInvalidSampleRate or any error in the chain whose message is
// exactly "Invalid sample rate"
func IsInvalidSampleRate(err error) bool {
	for err != nil {
		if err == ErrInvalidSampleRate || err.Error() == ErrInvalidSampleRate.Error() {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range x.Unwrap() {
				if IsInvalidSampleRate(e) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		default:
			return false
		}
	}
	return false
}

// Config holds the stream-open parameters
type Config struct {
	SampleRate     float64            `yaml:"sample_rate"`
	BlockSize      int                `yaml:"block_size"`
	Format         audio.SampleFormat `yaml:"format"`
	InputChannels  int                `yaml:"input_channels"`
	OutputChannels int                `yaml:"output_channels"`
	BufferBlocks   int                `yaml:"buffer_blocks"`
}

// DefaultConfig returns a stereo playback configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:     48000,
		BlockSize:      512,
		Format:         audio.Float32,
		OutputChannels: 2,
		BufferBlocks:   buffer.DefaultBlocks,
	}
}

// Validate checks the configuration before any engine activity
func (c Config) Validate() error {
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidConfig, c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	}
	if !c.Format.Valid() {
		return fmt.Errorf("%w: %d", audio.ErrUnsupportedFormat, uint8(c.Format))
	}
	if c.InputChannels < 0 || c.OutputChannels < 0 {
		return fmt.Errorf("%w: negative channel count", ErrInvalidConfig)
	}
	if c.InputChannels == 0 && c.OutputChannels == 0 {
		return fmt.Errorf("%w: no input or output channels", ErrInvalidConfig)
	}
	if c.BufferBlocks < 0 {
		return fmt.Errorf("%w: buffer blocks must not be negative, got %d", ErrInvalidConfig, c.BufferBlocks)
	}
	return nil
}

// Duplex reports whether the stream both captures and plays
func (c Config) Duplex() bool {
	return c.InputChannels > 0 && c.OutputChannels > 0
}

// BlockDuration returns the length of one block in seconds
func (c Config) BlockDuration() float64 {
	return float64(c.BlockSize) / c.SampleRate
}

// InputBytes returns the native size of one capture block
func (c Config) InputBytes() int {
	return audio.BlockBytes(c.Format, c.InputChannels, c.BlockSize)
}

// OutputBytes returns the native size of one playback block
func (c Config) OutputBytes() int {
	return audio.BlockBytes(c.Format, c.OutputChannels, c.BlockSize)
}
