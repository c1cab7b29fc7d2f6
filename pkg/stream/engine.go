// ABOUTME: Engine interface implemented by native audio backends
// ABOUTME: Engines own the real-time thread and invoke the stream callback
package stream

// Callback is invoked by an engine once per hardware block.
//
// out is the playback buffer to fill and in the captured frames, both in
// the configured native format and frame-interleaved; either is nil when
// that direction is inactive. hostTime is the engine's clock in seconds.
// Implementations must not block, allocate or retain the slices.
type Callback func(out, in []byte, frames int, hostTime float64)

// Engine drives a Callback from a native audio engine
type Engine interface {
	// Name identifies the engine in logs and the UI
	Name() string

	// Open negotiates cfg with the device and registers cb.
	// A rejected sample rate is reported as ErrInvalidSampleRate.
	Open(cfg Config, cb Callback) error

	// Start begins invoking the callback
	Start() error

	// Stop returns once the callback has stopped firing
	Stop() error

	// Close releases the device
	Close() error
}
