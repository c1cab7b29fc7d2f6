// ABOUTME: Block ring buffer package
// ABOUTME: Single-producer/single-consumer handoff of audio blocks
// Package buffer provides SampleBuffer, a fixed ring of pre-allocated
// audio blocks shared between a real-time engine callback and an
// application goroutine.
//
// The application side works in [channels][frames] float32 blocks; the
// real-time side copies raw native-format bytes. A full or empty buffer is
// reported as false, never as an error.
//
// Example:
//
//	buf, err := buffer.New(buffer.Config{
//	    Format:     audio.Int16,
//	    Channels:   2,
//	    BlockSize:  512,
//	    SampleRate: 48000,
//	})
//	ok, err := buf.WriteBlock(block)
package buffer
