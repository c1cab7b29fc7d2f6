// ABOUTME: Sample clock package
// ABOUTME: Models stream position in samples and estimates device clock drift
// Package clock provides the sample-accurate time model used by streams.
//
// SampleTime is an immutable value describing a position in a stream as a
// block number and an index within that block. Relative time is always
// derived from the sample index and sample rate; a time offset biases it
// into the engine's wall-clock domain.
//
// DriftEstimator tracks how the device's sample clock relates to the host
// clock, estimating both the offset and the effective sample rate.
//
// Example:
//
//	start, err := clock.New(48000, 512)
//	end := start.Add(2.5)
//	for cur := start; cur.Before(end); cur = cur.AdvancedBlocks(1) {
//	    // ...
//	}
package clock
