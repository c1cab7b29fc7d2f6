// ABOUTME: FLAC file source
// ABOUTME: Decodes frame by frame with mewkiz/flac
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mewkiz/flac"
)

// FLAC reads from a FLAC file
type FLAC struct {
	stream     *flac.Stream
	sampleRate float64
	channels   int
	bitDepth   int
	title      string
	chunk      []float32
	reader     chunkReader
}

// OpenFLAC creates a new FLAC audio source
func OpenFLAC(path string) (*FLAC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	s := &FLAC{
		stream:     stream,
		sampleRate: float64(info.SampleRate),
		channels:   int(info.NChannels),
		bitDepth:   int(info.BitsPerSample),
		title:      titleOf(path),
	}
	s.reader = chunkReader{channels: s.channels, next: s.decode}

	slog.Debug("Loaded FLAC", "title", s.title,
		"sample_rate", info.SampleRate,
		"channels", info.NChannels,
		"bit_depth", info.BitsPerSample)
	return s, nil
}

func (s *FLAC) decode() ([]float32, error) {
	frame, err := s.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC frame: %w", err)
	}

	frames := int(frame.BlockSize)
	need := frames * s.channels
	if cap(s.chunk) < need {
		s.chunk = make([]float32, need)
	}
	samples := s.chunk[:need]

	scale := 1 / float32(int64(1)<<(s.bitDepth-1))
	for i := 0; i < frames; i++ {
		for ch := 0; ch < s.channels; ch++ {
			samples[i*s.channels+ch] = float32(frame.Subframes[ch].Samples[i]) * scale
		}
	}
	return samples, nil
}

func (s *FLAC) Read(block [][]float32) (int, error) { return s.reader.read(block) }
func (s *FLAC) SampleRate() float64                 { return s.sampleRate }
func (s *FLAC) Channels() int                       { return s.channels }
func (s *FLAC) Name() string                        { return s.title }

// Close closes the stream and its file
func (s *FLAC) Close() error {
	return s.stream.Close()
}
