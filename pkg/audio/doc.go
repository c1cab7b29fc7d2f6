// ABOUTME: Sample format registry and block codec
// ABOUTME: Converts planar float32 blocks to and from interleaved device bytes
// Package audio describes the sample formats an audio device can exchange
// and converts between them and normalized float32 audio.
//
// Blocks are planar ([channel][frame]float32, nominally in [-1, 1]).
// Encoded bytes are frame-interleaved little-endian in the target format:
//   - float32: IEEE-754 bits, no scaling
//   - int32, int24, int16, int8: scaled by the format multiplier, rounded, clamped
//   - uint8: as int8, offset by 128
//
// Example:
//
//	f, err := audio.Lookup("int16")
//	raw, err := audio.Pack(block, f)
//	back, err := audio.Unpack(raw, f, channels, frames)
package audio
