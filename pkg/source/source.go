// ABOUTME: Source interface and file source factory
// ABOUTME: Chooses a decoder by file extension
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFile is returned by Open for unknown file extensions
var ErrUnsupportedFile = errors.New("unsupported audio file")

// Source provides planar float32 audio
type Source interface {
	// Read fills up to len(block[0]) frames of every channel and returns
	// the number of frames written. It returns io.EOF once exhausted.
	Read(block [][]float32) (int, error)
	// SampleRate returns the sample rate of the audio
	SampleRate() float64
	// Channels returns the number of channels
	Channels() int
	// Name returns a display name
	Name() string
	// Close closes the audio source
	Close() error
}

// Open creates a source from a local file
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return OpenMP3(path)
	case ".wav":
		return OpenWAV(path)
	case ".flac":
		return OpenFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .wav, .flac)", ErrUnsupportedFile, ext)
	}
}

// ReadFull reads until block is full or the source ends. A short final
// block is zero padded; n reports the frames that came from the source.
func ReadFull(src Source, block [][]float32) (int, error) {
	if len(block) == 0 {
		return 0, nil
	}
	frames := len(block[0])
	n := 0
	for n < frames {
		view := make([][]float32, len(block))
		for ch := range block {
			view[ch] = block[ch][n:]
		}
		m, err := src.Read(view)
		n += m
		if err != nil {
			for ch := range block {
				clear(block[ch][n:])
			}
			if errors.Is(err, io.EOF) && n > 0 {
				return n, nil
			}
			return n, err
		}
		if m == 0 {
			return n, io.ErrNoProgress
		}
	}
	return n, nil
}

func titleOf(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
