// ABOUTME: Native audio engine adapters
// ABOUTME: Provides Null, Malgo, Oto and PortAudio implementations of stream.Engine
// Package engine adapts native audio libraries to stream.Engine.
//
// Each engine owns the real-time thread of its library and invokes the
// stream callback once per block with native-format, frame-interleaved
// buffers:
//   - Null: simulated device paced by a ticker, used for tests and dry runs
//   - Malgo: miniaudio capture, playback and duplex devices
//   - Oto: playback through ebitengine/oto
//   - PortAudio: default device via PortAudio (build with -tags portaudio)
//
// Example:
//
//	eng, err := engine.New("malgo", engine.Options{})
//	s, err := stream.New(cfg, eng)
package engine
