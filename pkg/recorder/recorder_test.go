// ABOUTME: Tests for the recorder
// ABOUTME: Records from the simulated engine and round-trips the saved files
package recorder

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/nocarryr/go-sounddevice/pkg/source"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureConfig() stream.Config {
	return stream.Config{
		SampleRate:    8000,
		BlockSize:     64,
		Format:        audio.Int16,
		InputChannels: 2,
		BufferBlocks:  16,
	}
}

func constantInput(cfg stream.Config) func([]byte, float64) {
	block := audio.NewBlock(cfg.InputChannels, cfg.BlockSize)
	for i := range block[0] {
		block[0][i] = 0.25
		block[1][i] = -0.25
	}
	return func(in []byte, _ float64) {
		_ = audio.Encode(in, block, cfg.Format)
	}
}

func newStream(t *testing.T, cfg stream.Config, null engine.NullConfig) *stream.Stream {
	t.Helper()
	s, err := stream.New(cfg, engine.NewNull(null))
	require.NoError(t, err)
	return s
}

func TestNewRequiresInput(t *testing.T) {
	cfg := captureConfig()
	cfg.InputChannels = 0
	cfg.OutputChannels = 2
	s := newStream(t, cfg, engine.NullConfig{})

	_, err := New(s)
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)
}

func TestRecord(t *testing.T) {
	cfg := captureConfig()
	s := newStream(t, cfg, engine.NullConfig{Speed: 4, Input: constantInput(cfg)})

	var hooked int
	rec, err := New(s,
		WithPollInterval(time.Millisecond),
		WithBlockHook(func(clock.SampleTime, [][]float32) { hooked++ }))
	require.NoError(t, err)

	recording, err := rec.Record(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, recording.Complete)
	assert.Equal(t, stream.StateClosed, s.State(), "a stream opened by the recorder is stopped again")

	// ceil(0.1 * 8000 / 64)
	assert.Equal(t, int64(13), recording.EndBlock)
	require.Len(t, recording.Stamps, 13)
	assert.Equal(t, 13, hooked)
	assert.Empty(t, recording.Gaps())

	// the null engine's clock starts at zero, so only the first block is excluded
	assert.GreaterOrEqual(t, len(recording.Valid()), int(recording.EndBlock)-1)

	for i, st := range recording.Stamps {
		assert.Equal(t, int64(i), st.Block)
		assert.Equal(t, 0, st.BlockIndex)
		assert.InDelta(t, float64(i)*64/8000, st.RelTime, 1e-12)
	}

	require.Equal(t, 2, recording.Channels())
	require.Len(t, recording.Data[0], 13*64)
	for i := range recording.Data[0] {
		assert.InDelta(t, 0.25, recording.Data[0][i], 1e-4)
		assert.InDelta(t, -0.25, recording.Data[1][i], 1e-4)
	}
	assert.InDelta(t, float64(104*time.Millisecond), float64(recording.Duration()), float64(time.Microsecond))
}

func TestRecordAborted(t *testing.T) {
	cfg := captureConfig()
	s := newStream(t, cfg, engine.NullConfig{Speed: 4})

	rec, err := New(s,
		WithPollInterval(time.Millisecond),
		WithBlockHook(func(st clock.SampleTime, _ [][]float32) {
			if st.Block() == 2 {
				require.NoError(t, s.Stop())
			}
		}))
	require.NoError(t, err)

	recording, err := rec.Record(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrAborted)
	assert.False(t, recording.Complete)
	assert.Len(t, recording.Stamps, 3)
}

func TestRecordTimeout(t *testing.T) {
	cfg := captureConfig()
	// one block every 8 seconds
	s := newStream(t, cfg, engine.NullConfig{Speed: 0.001})

	rec, err := New(s, WithPollInterval(time.Millisecond), WithTimeoutMargin(20*time.Millisecond))
	require.NoError(t, err)

	_, err = rec.Record(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, stream.StateClosed, s.State())
}

func TestRecordContextCancel(t *testing.T) {
	cfg := captureConfig()
	s := newStream(t, cfg, engine.NullConfig{Speed: 0.001})

	rec, err := New(s, WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = rec.Record(ctx, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSaveAndLoad(t *testing.T) {
	cfg := captureConfig()
	s := newStream(t, cfg, engine.NullConfig{Speed: 4, Input: constantInput(cfg)})

	rec, err := New(s, WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	recording, err := rec.Record(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, recording.Save(path, 16))
	assert.Equal(t, filepath.Join(filepath.Dir(path), "take.blocks.yaml"), SidecarPath(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint32(8000), dec.SampleRate)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 2*len(recording.Data[0]))
	assert.Equal(t, 8192, buf.Data[0])
	assert.Equal(t, -8192, buf.Data[1])

	loaded, err := LoadStamps(SidecarPath(path))
	require.NoError(t, err)
	assert.Equal(t, recording.ID, loaded.ID)
	assert.Equal(t, recording.Stamps, loaded.Stamps)
	assert.Equal(t, audio.Int16, loaded.Format)
	assert.Equal(t, 2, loaded.Channels())
	assert.True(t, loaded.Complete)
}

func TestWriteWAVRejectsBitDepth(t *testing.T) {
	r := &Recording{SampleRate: 8000, Data: [][]float32{{0}}}
	err := r.WriteWAV(filepath.Join(t.TempDir(), "x.wav"), 12)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	assert.NoError(t, CheckBitDepth(FloatBitDepth))
	assert.NoError(t, CheckBitDepth(24))
	assert.ErrorIs(t, CheckBitDepth(-8), audio.ErrUnsupportedFormat)
}

func TestSaveFloatWAV(t *testing.T) {
	left := []float32{0, 0.25, -1, 1, 0.123456789, -0.5}
	right := []float32{1e-7, -0.25, 0.75, -0.999, 0.5, 0}
	r := &Recording{
		ID:         uuid.New(),
		SampleRate: 48000,
		BlockSize:  3,
		Format:     audio.Float32,
		Data:       [][]float32{left, right},
		Stamps:     []Stamp{{SampleIndex: 0}, {SampleIndex: 3}},
	}

	path := filepath.Join(t.TempDir(), "float.wav")
	require.NoError(t, r.Save(path, FloatBitDepth))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint16(3), dec.WavAudioFormat, "IEEE float format tag")
	assert.Equal(t, uint16(32), dec.BitDepth)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint32(48000), dec.SampleRate)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 2*len(left))
	for i := range left {
		assert.Equal(t, left[i], math.Float32frombits(uint32(buf.Data[2*i])), "left[%d]", i)
		assert.Equal(t, right[i], math.Float32frombits(uint32(buf.Data[2*i+1])), "right[%d]", i)
	}

	// the file source reads float WAV back without quantizing
	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()
	block := audio.NewBlock(2, len(left))
	n, err := source.ReadFull(src, block)
	require.NoError(t, err)
	require.Equal(t, len(left), n)
	assert.Equal(t, left, block[0])
	assert.Equal(t, right, block[1])
}

func TestRecordStampsDroppedBlocks(t *testing.T) {
	cfg := captureConfig()
	cfg.BufferBlocks = 2
	s := newStream(t, cfg, engine.NullConfig{Input: constantInput(cfg)})

	// polling far slower than the two-block buffer drains forces overflows
	rec, err := New(s, WithPollInterval(40*time.Millisecond))
	require.NoError(t, err)
	recording, err := rec.Record(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, recording.Stamps, 13)

	assert.Positive(t, s.Stats().Overflows)
	assert.NotEmpty(t, recording.Gaps(), "dropped blocks show up as sample index jumps")
	for i := 1; i < len(recording.Stamps); i++ {
		prev, cur := recording.Stamps[i-1], recording.Stamps[i]
		assert.Greater(t, cur.SampleIndex, prev.SampleIndex)
		assert.Zero(t, (cur.SampleIndex-prev.SampleIndex)%int64(cfg.BlockSize))
	}
}

func TestGaps(t *testing.T) {
	r := &Recording{BlockSize: 4, Stamps: []Stamp{
		{SampleIndex: 0, PaTime: 0},
		{SampleIndex: 4, PaTime: 0.1},
		{SampleIndex: 12, PaTime: 0.2},
	}}
	assert.Equal(t, []int{2}, r.Gaps())
	assert.Len(t, r.Valid(), 2)
}
