// ABOUTME: Source-to-stream playback
// ABOUTME: Pulls blocks from a source and queues them on a stream's output buffer
// Package player plays a source through a stream.
//
// Blocks are read from the source (converted to the stream's rate and
// channel count), then queued with Stream.WriteWait. Playback ends at
// source EOF, at the optional end time, or when Stop is called.
package player
