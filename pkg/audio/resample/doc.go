// ABOUTME: Sample rate conversion for planar float32 blocks
// ABOUTME: Wraps one polyphase resampler engine per channel
// Package resample converts planar float32 audio between sample rates.
//
// Each channel runs through its own go-audio-resampler engine so channel
// state never mixes. Output lengths vary from call to call; callers that
// need fixed blocks should re-block the result.
//
// Example:
//
//	r, err := resample.New(44100, 48000, 2, resample.QualityHigh)
//	out, err := r.Process(block)
//	tail, err := r.Flush()
package resample
