// ABOUTME: Tests for the playback loop
// ABOUTME: Plays tones and finite sources through the simulated engine
package player

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/nocarryr/go-sounddevice/pkg/source"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finite serves a fixed number of frames of a constant value
type finite struct {
	frames int
	value  float32
}

func (f *finite) Read(block [][]float32) (int, error) {
	if f.frames == 0 {
		return 0, io.EOF
	}
	n := min(f.frames, len(block[0]))
	for ch := range block {
		for i := 0; i < n; i++ {
			block[ch][i] = f.value
		}
	}
	f.frames -= n
	return n, nil
}

func (f *finite) SampleRate() float64 { return 8000 }
func (f *finite) Channels() int       { return 1 }
func (f *finite) Name() string        { return "finite" }
func (f *finite) Close() error        { return nil }

type playback struct {
	mu     sync.Mutex
	blocks int
}

func (p *playback) observe(cfg stream.Config) func([]byte, float64) {
	return func(out []byte, _ float64) {
		block, err := audio.Unpack(out, cfg.Format, cfg.OutputChannels, cfg.BlockSize)
		if err != nil || audio.Peak(block[0]) == 0 {
			return
		}
		p.mu.Lock()
		p.blocks++
		p.mu.Unlock()
	}
}

func (p *playback) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocks
}

func playConfig() stream.Config {
	return stream.Config{
		SampleRate:     8000,
		BlockSize:      64,
		Format:         audio.Float32,
		OutputChannels: 2,
		BufferBlocks:   4,
	}
}

func openStream(t *testing.T, pb *playback) *stream.Stream {
	t.Helper()
	cfg := playConfig()
	s, err := stream.New(cfg, engine.NewNull(engine.NullConfig{Speed: 4, Output: pb.observe(cfg)}),
		stream.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRequiresOutput(t *testing.T) {
	cfg := playConfig()
	cfg.OutputChannels = 0
	cfg.InputChannels = 1
	s, err := stream.New(cfg, engine.NewNull(engine.NullConfig{}))
	require.NoError(t, err)

	_, err = New(s, &finite{}, Config{})
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)
}

func TestPlayDuration(t *testing.T) {
	pb := &playback{}
	s := openStream(t, pb)

	tone, err := source.NewTone(source.ToneConfig{Frequencies: []float64{1000}, SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	p, err := New(s, tone, Config{Duration: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, int64(13), p.EndTime().Block())

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int64(13), p.Stats().Written)
	assert.Zero(t, p.Stats().Dropped)
	assert.Equal(t, int64(13*64), p.Position().SampleIndex())
	assert.InDelta(t, 0.5/1.41421356, p.Level(), 0.05)

	// the last queued block has been taken by the engine
	assert.Eventually(t, func() bool { return pb.count() == 13 }, time.Second, time.Millisecond)
	require.NoError(t, p.Close())
}

func TestPlayUntilEOF(t *testing.T) {
	pb := &playback{}
	s := openStream(t, pb)

	p, err := New(s, &finite{frames: 200, value: 0.5}, Config{})
	require.NoError(t, err)
	assert.True(t, p.EndTime().IsZero())

	require.NoError(t, p.Run(context.Background()))
	// 64 + 64 + 64 + 8 frames
	assert.Equal(t, int64(4), p.Stats().Written)
	assert.Equal(t, int64(200), p.Position().SampleIndex())
	assert.Zero(t, s.OutputBuffer().Len())
}

func TestPlayStop(t *testing.T) {
	pb := &playback{}
	s := openStream(t, pb)

	tone, err := source.NewTone(source.ToneConfig{Frequencies: []float64{440}, SampleRate: 8000, Channels: 2})
	require.NoError(t, err)
	p, err := New(s, tone, Config{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool { return p.Stats().Written >= 5 }, 5*time.Second, time.Millisecond)
	p.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("player did not stop")
	}
}

func TestPlayContextCancel(t *testing.T) {
	pb := &playback{}
	s := openStream(t, pb)

	tone, err := source.NewTone(source.ToneConfig{Frequencies: []float64{440}, SampleRate: 8000, Channels: 2})
	require.NoError(t, err)
	p, err := New(s, tone, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), p.Stats().Dropped)
}

func TestPlayStreamClosed(t *testing.T) {
	pb := &playback{}
	s := openStream(t, pb)

	tone, err := source.NewTone(source.ToneConfig{Frequencies: []float64{440}, SampleRate: 8000, Channels: 2})
	require.NoError(t, err)
	p, err := New(s, tone, Config{})
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = s.Stop()
	}()
	err = p.Run(context.Background())
	assert.ErrorIs(t, err, stream.ErrInvalidState)
}
