// ABOUTME: Audio sources feeding playback streams
// ABOUTME: Generated tones and decoded MP3, WAV and FLAC files as planar float32
// Package source provides audio sources for playback.
//
// Every source produces planar float32 blocks ([channel][frame]) at its own
// sample rate and channel count. Convert adapts a source to a stream's rate
// and channel layout.
//
// Example:
//
//	src, err := source.Open("track.mp3")
//	src, err = source.Convert(src, 48000, 2, resample.QualityHigh)
//	n, err := src.Read(block)
package source
