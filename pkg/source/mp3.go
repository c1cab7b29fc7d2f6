// ABOUTME: MP3 file source
// ABOUTME: Decodes with go-mp3, which always yields 16-bit stereo
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

const mp3ChunkBytes = 4096

// MP3 reads from an MP3 file
type MP3 struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate float64
	title      string
	raw        []byte
	chunk      []float32
	reader     chunkReader
}

// OpenMP3 creates a new MP3 audio source
func OpenMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	s, err := NewMP3(f, titleOf(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

// NewMP3 decodes MP3 data from r
func NewMP3(r io.Reader, title string) (*MP3, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3{
		decoder:    decoder,
		sampleRate: float64(decoder.SampleRate()),
		title:      title,
		raw:        make([]byte, mp3ChunkBytes),
		chunk:      make([]float32, mp3ChunkBytes/2),
	}
	s.reader = chunkReader{channels: 2, next: s.decode}

	slog.Debug("Loaded MP3", "title", title, "sample_rate", decoder.SampleRate())
	return s, nil
}

func (s *MP3) decode() ([]float32, error) {
	n, err := io.ReadFull(s.decoder, s.raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	// 4 bytes per stereo frame
	n -= n % 4
	samples := s.chunk[:n/2]
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(s.raw[i*2:]))) / 32768
	}
	return samples, err
}

func (s *MP3) Read(block [][]float32) (int, error) { return s.reader.read(block) }
func (s *MP3) SampleRate() float64                 { return s.sampleRate }
func (s *MP3) Channels() int                       { return 2 }
func (s *MP3) Name() string                        { return s.title }

func (s *MP3) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
