// ABOUTME: WAV file source
// ABOUTME: Decodes integer PCM and 32-bit float with go-audio/wav
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavChunkFrames = 2048

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT format tag
const wavFormatFloat = 3

// WAV reads from a PCM or IEEE float WAV file
type WAV struct {
	file       io.Closer
	decoder    *wav.Decoder
	sampleRate float64
	channels   int
	bitDepth   int
	float      bool
	title      string
	intBuf     *goaudio.IntBuffer
	chunk      []float32
	reader     chunkReader
}

// OpenWAV creates a new WAV audio source
func OpenWAV(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	s, err := NewWAV(f, titleOf(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

// NewWAV decodes WAV data from r
func NewWAV(r io.ReadSeeker, title string) (*WAV, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", title)
	}
	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	float := decoder.WavAudioFormat == wavFormatFloat
	if float && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported float WAV bit depth %d", bitDepth)
	}

	s := &WAV{
		decoder:    decoder,
		sampleRate: float64(format.SampleRate),
		channels:   format.NumChannels,
		bitDepth:   bitDepth,
		float:      float,
		title:      title,
		intBuf: &goaudio.IntBuffer{
			Data:   make([]int, wavChunkFrames*format.NumChannels),
			Format: format,
		},
		chunk: make([]float32, wavChunkFrames*format.NumChannels),
	}
	s.reader = chunkReader{channels: s.channels, next: s.decode}

	slog.Debug("Loaded WAV", "title", title,
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bit_depth", bitDepth,
		"float", float)
	return s, nil
}

func (s *WAV) decode() ([]float32, error) {
	n, err := s.decoder.PCMBuffer(s.intBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	samples := s.chunk[:n]
	if s.float {
		for i, v := range s.intBuf.Data[:n] {
			samples[i] = math.Float32frombits(uint32(v))
		}
		return samples, nil
	}

	scale := 1 / float32(int64(1)<<(s.bitDepth-1))
	for i, v := range s.intBuf.Data[:n] {
		if s.bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		samples[i] = float32(v) * scale
	}
	return samples, nil
}

func (s *WAV) Read(block [][]float32) (int, error) { return s.reader.read(block) }
func (s *WAV) SampleRate() float64                 { return s.sampleRate }
func (s *WAV) Channels() int                       { return s.channels }
func (s *WAV) Name() string                        { return s.title }

func (s *WAV) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
