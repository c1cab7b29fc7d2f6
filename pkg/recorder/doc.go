// ABOUTME: Fixed-duration capture from a stream
// ABOUTME: Collects stamped blocks and saves them as WAV plus a YAML sidecar
// Package recorder captures a fixed duration from a stream's input buffer.
//
// The recording ends at the first block boundary whose pa_time reaches the
// requested duration. Each captured block keeps the SampleTime stamp the
// buffer assigned it, so gaps from overflows show up as sample index jumps.
//
// Example:
//
//	rec, err := recorder.New(s)
//	recording, err := rec.Record(ctx, 3*time.Second)
//	err = recording.Save("take.wav", recorder.FloatBitDepth)
package recorder
