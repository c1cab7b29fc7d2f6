// ABOUTME: Stream callback bridge package
// ABOUTME: Connects a native engine's real-time callback to SampleBuffers
// Package stream bridges a native audio engine and the application.
//
// A Stream owns one SampleBuffer per active direction. The engine calls
// the stream's callback from its real-time thread once per block; the
// callback copies native-format bytes between the hardware buffers and
// the SampleBuffers and never blocks, allocates or logs. Missed blocks
// are counted as underflows (playback) and overflows (capture).
//
// Lifecycle: Closed -> Open -> Running -> Closing -> Closed.
//
// Example:
//
//	s, err := stream.New(cfg, engine.NewNull(engine.NullConfig{}))
//	if err := s.Open(); err != nil {
//	    if stream.IsInvalidSampleRate(err) { ... }
//	}
//	defer s.Close()
//	ok, err := s.Write(block)
package stream
