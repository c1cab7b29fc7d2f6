// ABOUTME: Captured audio with per-block stamps
// ABOUTME: Writes WAV through go-audio/wav and stamps through yaml.v3
package recorder

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/tphakala/simd/f32"
	"gopkg.in/yaml.v3"
)

// Stamp records where one captured block sits on the stream clock
type Stamp struct {
	Block       int64   `yaml:"block"`
	BlockIndex  int     `yaml:"block_index"`
	SampleIndex int64   `yaml:"sample_index"`
	PaTime      float64 `yaml:"pa_time"`
	RelTime     float64 `yaml:"rel_time"`
	TimeOffset  float64 `yaml:"time_offset"`
}

// StampOf copies the fields of t
func StampOf(t clock.SampleTime) Stamp {
	return Stamp{
		Block:       t.Block(),
		BlockIndex:  t.BlockIndex(),
		SampleIndex: t.SampleIndex(),
		PaTime:      t.PaTime(),
		RelTime:     t.RelTime(),
		TimeOffset:  t.TimeOffset(),
	}
}

// Recording holds captured planar audio and the stamp of each block
type Recording struct {
	ID         uuid.UUID
	SampleRate float64
	BlockSize  int
	Format     audio.SampleFormat
	Started    time.Time
	EndBlock   int64
	Complete   bool

	// Data is [channel][sample], BlockSize samples per stamp
	Data   [][]float32
	Stamps []Stamp
}

func (r *Recording) append(t clock.SampleTime, block [][]float32) {
	for ch := range r.Data {
		r.Data[ch] = append(r.Data[ch], block[ch]...)
	}
	r.Stamps = append(r.Stamps, StampOf(t))
}

// Channels returns the channel count
func (r *Recording) Channels() int { return len(r.Data) }

// Duration returns the captured audio length
func (r *Recording) Duration() time.Duration {
	if len(r.Data) == 0 {
		return 0
	}
	return time.Duration(float64(len(r.Data[0])) / r.SampleRate * float64(time.Second))
}

// Valid returns the stamps of blocks captured after the stream's time
// origin, i.e. with a pa_time above zero
func (r *Recording) Valid() []Stamp {
	var out []Stamp
	for _, s := range r.Stamps {
		if s.PaTime > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Gaps returns the positions of blocks whose sample index is not
// position*BlockSize. Dropped blocks shift every later index.
func (r *Recording) Gaps() []int {
	var out []int
	for i, s := range r.Stamps {
		if s.SampleIndex != int64(i)*int64(r.BlockSize) {
			out = append(out, i)
		}
	}
	return out
}

// sidecar is the YAML document written next to the WAV file
type sidecar struct {
	ID         string    `yaml:"id"`
	SampleRate float64   `yaml:"sample_rate"`
	BlockSize  int       `yaml:"block_size"`
	Channels   int       `yaml:"channels"`
	Format     string    `yaml:"format"`
	Started    time.Time `yaml:"started"`
	EndBlock   int64     `yaml:"end_block"`
	Complete   bool      `yaml:"complete"`
	Blocks     []Stamp   `yaml:"blocks"`
}

// SidecarPath returns the stamp file path for a WAV path
func SidecarPath(wavPath string) string {
	return strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".blocks.yaml"
}

// FloatBitDepth selects 32-bit IEEE float WAV samples in Save and WriteWAV
const FloatBitDepth = 0

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT format tag
const wavFormatFloat = 3

// CheckBitDepth reports whether bitDepth can be written: FloatBitDepth or
// an integer depth of 8, 16, 24 or 32
func CheckBitDepth(bitDepth int) error {
	if bitDepth == FloatBitDepth {
		return nil
	}
	_, err := audio.IntFormat(bitDepth)
	return err
}

// Save writes the audio as WAV at bitDepth and the stamps to
// SidecarPath(path)
func (r *Recording) Save(path string, bitDepth int) error {
	if err := r.WriteWAV(path, bitDepth); err != nil {
		return err
	}
	return r.WriteStamps(SidecarPath(path))
}

// WriteWAV writes the audio as 32-bit float when bitDepth is FloatBitDepth,
// otherwise as integer PCM at bitDepth (8, 16, 24 or 32)
func (r *Recording) WriteWAV(path string, bitDepth int) error {
	if err := CheckBitDepth(bitDepth); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("recording has no channels")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer f.Close()

	channels := len(r.Data)
	wavFormat, depth := 1, bitDepth
	if bitDepth == FloatBitDepth {
		wavFormat, depth = wavFormatFloat, 32
	}
	enc := wav.NewEncoder(f, int(r.SampleRate), depth, channels, wavFormat)

	buf := &goaudio.IntBuffer{
		Data:           make([]int, len(r.Data[0])*channels),
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(r.SampleRate)},
		SourceBitDepth: depth,
	}

	interleaved := interleave(r.Data)
	if bitDepth == FloatBitDepth {
		// the encoder writes 32-bit samples as little-endian int32,
		// so carry the float bits through unchanged
		for i, v := range interleaved {
			buf.Data[i] = int(int32(math.Float32bits(v)))
		}
	} else {
		format, _ := audio.IntFormat(bitDepth)
		for i, v := range interleaved {
			q := audio.Quantize(v, format)
			if bitDepth == 8 {
				// 8-bit WAV is unsigned
				q += 128
			}
			buf.Data[i] = int(q)
		}
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return f.Close()
}

func interleave(data [][]float32) []float32 {
	channels := len(data)
	frames := len(data[0])
	out := make([]float32, frames*channels)
	if channels == 2 {
		f32.Interleave2(out, data[0], data[1])
		return out
	}
	for ch, samples := range data {
		for i, v := range samples {
			out[i*channels+ch] = v
		}
	}
	return out
}

// WriteStamps writes the block stamps as YAML
func (r *Recording) WriteStamps(path string) error {
	doc := sidecar{
		ID:         r.ID.String(),
		SampleRate: r.SampleRate,
		BlockSize:  r.BlockSize,
		Channels:   len(r.Data),
		Format:     r.Format.String(),
		Started:    r.Started,
		EndBlock:   r.EndBlock,
		Complete:   r.Complete,
		Blocks:     r.Stamps,
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode stamps: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write stamps: %w", err)
	}
	return nil
}

// LoadStamps reads a stamp sidecar into a Recording without audio data
func LoadStamps(path string) (*Recording, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stamps: %w", err)
	}
	var doc sidecar
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse stamps: %w", err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid recording id %q: %w", doc.ID, err)
	}
	format, err := audio.Lookup(doc.Format)
	if err != nil {
		return nil, err
	}
	return &Recording{
		ID:         id,
		SampleRate: doc.SampleRate,
		BlockSize:  doc.BlockSize,
		Format:     format,
		Started:    doc.Started,
		EndBlock:   doc.EndBlock,
		Complete:   doc.Complete,
		Data:       make([][]float32, doc.Channels),
		Stamps:     doc.Blocks,
	}, nil
}
