// ABOUTME: Tests for the simulated engine
// ABOUTME: Runs full streams through the null engine at accelerated speed
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() stream.Config {
	cfg := stream.DefaultConfig()
	cfg.SampleRate = 8000
	cfg.BlockSize = 64
	cfg.OutputChannels = 1
	cfg.BufferBlocks = 4
	return cfg
}

func TestNullUnsupportedRate(t *testing.T) {
	e := NewNull(NullConfig{SupportedRates: []float64{44100, 48000}})
	cfg := smallConfig()

	s, err := stream.New(cfg, e)
	require.NoError(t, err)

	err = s.Open()
	require.Error(t, err)
	assert.True(t, stream.IsInvalidSampleRate(err))
	assert.Equal(t, stream.StateClosed, s.State())
}

func TestNullRejectsSubNanosecondPeriod(t *testing.T) {
	t.Run("sample rate", func(t *testing.T) {
		cfg := smallConfig()
		cfg.SampleRate = 2e12
		cfg.BlockSize = 1

		s, err := stream.New(cfg, NewNull(NullConfig{}))
		require.NoError(t, err)
		err = s.Open()
		assert.ErrorIs(t, err, stream.ErrInvalidConfig)
		assert.Equal(t, stream.StateClosed, s.State())
	})

	t.Run("speed", func(t *testing.T) {
		e := NewNull(NullConfig{Speed: 1e12})
		err := e.Open(smallConfig(), func([]byte, []byte, int, float64) {})
		assert.ErrorIs(t, err, stream.ErrInvalidConfig)
		assert.Error(t, e.Start(), "a rejected open leaves the engine closed")
	})
}

func TestNullPlayback(t *testing.T) {
	var (
		mu     sync.Mutex
		played []float32
	)
	cfg := smallConfig()
	e := NewNull(NullConfig{
		Speed: 20,
		Output: func(out []byte, _ float64) {
			block, err := audio.Unpack(out, cfg.Format, cfg.OutputChannels, cfg.BlockSize)
			if err != nil {
				return
			}
			// underflow blocks are silent
			if block[0][0] == 0 {
				return
			}
			mu.Lock()
			played = append(played, block[0][0])
			mu.Unlock()
		},
	})

	s, err := stream.New(cfg, e, stream.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Open())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	block := audio.NewBlock(1, cfg.BlockSize)
	for i := 0; i < 10; i++ {
		for j := range block[0] {
			block[0][j] = float32(i+1) / 16
		}
		require.NoError(t, s.WriteWait(ctx, block))
	}

	require.Eventually(t, func() bool {
		return s.Stats().OutputQueued == 0
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, played, 10)
	for i, v := range played {
		assert.Equal(t, float32(i+1)/16, v, "block %d", i)
	}
}

func TestNullCapture(t *testing.T) {
	cfg := smallConfig()
	cfg.OutputChannels = 0
	cfg.InputChannels = 2

	e := NewNull(NullConfig{
		Speed: 20,
		Input: func(in []byte, _ float64) {
			block := audio.NewBlock(2, cfg.BlockSize)
			for i := range block[0] {
				block[0][i] = 0.25
				block[1][i] = -0.25
			}
			_ = audio.Encode(in, block, cfg.Format)
		},
	})

	s, err := stream.New(cfg, e, stream.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Open())
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dst := audio.NewBlock(2, cfg.BlockSize)
	for i := int64(0); i < 3; i++ {
		stamp, err := s.ReadWait(ctx, dst)
		require.NoError(t, err)
		assert.Equal(t, i, stamp.Block())
		assert.Equal(t, float32(0.25), dst[0][0])
		assert.Equal(t, float32(-0.25), dst[1][cfg.BlockSize-1])
	}
	assert.Equal(t, stream.StateRunning, s.State())
}

func TestNullLifecycle(t *testing.T) {
	e := NewNull(NullConfig{Speed: 50})
	cb := func([]byte, []byte, int, float64) {}

	require.Error(t, e.Start())
	require.NoError(t, e.Open(smallConfig(), cb))
	require.Error(t, e.Open(smallConfig(), cb))
	require.NoError(t, e.Start())
	require.NoError(t, e.Start())
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())
	require.NoError(t, e.Close())

	// reopen after close
	require.NoError(t, e.Open(smallConfig(), cb))
	require.NoError(t, e.Close())
}
