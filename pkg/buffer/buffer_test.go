// ABOUTME: Tests for the lock-free block ring buffer
// ABOUTME: Covers FIFO ordering, backpressure, stamps and the raw real-time path
package buffer

import (
	"sync"
	"testing"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, f audio.SampleFormat, blocks int) *SampleBuffer {
	t.Helper()
	b, err := New(Config{
		Format:     f,
		Channels:   2,
		BlockSize:  64,
		Blocks:     blocks,
		SampleRate: 48000,
	})
	require.NoError(t, err)
	return b
}

func tagged(channels, frames int, tag float32) [][]float32 {
	block := audio.NewBlock(channels, frames)
	for ch := range block {
		for i := range block[ch] {
			block[ch][i] = tag
		}
	}
	return block
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"bad format", Config{Channels: 1, BlockSize: 64, SampleRate: 48000}, audio.ErrUnsupportedFormat},
		{"no channels", Config{Format: audio.Int16, BlockSize: 64, SampleRate: 48000}, ErrInvalidConfig},
		{"negative blocks", Config{Format: audio.Int16, Channels: 1, BlockSize: 64, Blocks: -2, SampleRate: 48000}, ErrInvalidConfig},
		{"no block size", Config{Format: audio.Int16, Channels: 1, SampleRate: 48000}, ErrInvalidConfig},
		{"no sample rate", Config{Format: audio.Int16, Channels: 1, BlockSize: 64}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDefaults(t *testing.T) {
	b, err := New(Config{Format: audio.Int24, Channels: 2, BlockSize: 128, SampleRate: 44100})
	require.NoError(t, err)
	assert.Equal(t, DefaultBlocks, b.Cap())
	assert.Equal(t, 2*128*3, b.BlockBytes())
	assert.Equal(t, 0, b.Len())
	assert.True(t, b.Ready(Fill))
	assert.False(t, b.Ready(Drain))
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := newTestBuffer(t, audio.Float32, 4)
	in := tagged(2, 64, 0.25)

	ok, err := b.WriteBlock(in)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, b.Len())
	assert.True(t, b.Ready(Drain))

	out := audio.NewBlock(2, 64)
	stamp, ok, err := b.ReadBlock(out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
	assert.Equal(t, int64(0), stamp.SampleIndex())
	assert.Equal(t, 0, b.Len())
}

func TestStampsAdvanceByBlock(t *testing.T) {
	b := newTestBuffer(t, audio.Int16, 4)
	out := audio.NewBlock(2, 64)

	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(i*64), b.WriteTime().SampleIndex())
		ok, err := b.WriteBlock(tagged(2, 64, 0))
		require.NoError(t, err)
		require.True(t, ok)

		stamp, ok, err := b.ReadBlock(out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(i), stamp.Block())
		assert.Equal(t, 0, stamp.BlockIndex())
		assert.Equal(t, int64((i+1)*64), b.ReadTime().SampleIndex())
	}
}

func TestTimeOffsetStamped(t *testing.T) {
	b := newTestBuffer(t, audio.Float32, 2)
	b.SetTimeOffset(12.5)
	assert.Equal(t, 12.5, b.TimeOffset())

	ok, err := b.WriteBlock(tagged(2, 64, 0))
	require.NoError(t, err)
	require.True(t, ok)

	stamp, ok, err := b.ReadBlock(audio.NewBlock(2, 64))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 12.5, stamp.TimeOffset())
	assert.Equal(t, 12.5, stamp.PaTime())
	assert.Equal(t, 0.0, stamp.RelTime())
}

func TestBackpressureWhenFull(t *testing.T) {
	b := newTestBuffer(t, audio.Float32, 3)
	for i := 0; i < 3; i++ {
		ok, err := b.WriteBlock(tagged(2, 64, float32(i)))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 3, b.Len())
	assert.False(t, b.Ready(Fill))

	ok, err := b.WriteBlock(tagged(2, 64, 99))
	assert.NoError(t, err, "a full buffer is not an error")
	assert.False(t, ok)
	assert.False(t, b.WriteRaw(make([]byte, b.BlockBytes())))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, int64(3*64), b.WriteTime().SampleIndex())

	out := audio.NewBlock(2, 64)
	for i := 0; i < 3; i++ {
		_, ok, err := b.ReadBlock(out)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, float32(i), out[0][0], "rejected write must not overwrite ready slots")
	}
}

func TestSkipWriteStampsTruePosition(t *testing.T) {
	b := newTestBuffer(t, audio.Int16, 2)

	require.True(t, b.WriteRaw(make([]byte, b.BlockBytes())))
	b.SkipWrite(64)
	b.SkipWrite(64)
	require.True(t, b.WriteRaw(make([]byte, b.BlockBytes())))
	assert.Equal(t, 2, b.Len(), "skipped frames claim no slot")
	assert.Equal(t, int64(4*64), b.WriteTime().SampleIndex())

	dst := make([]byte, b.BlockBytes())
	first, ok := b.ReadRaw(dst)
	require.True(t, ok)
	second, ok := b.ReadRaw(dst)
	require.True(t, ok)
	assert.Equal(t, int64(0), first.SampleIndex())
	assert.Equal(t, int64(3*64), second.SampleIndex())
	assert.Equal(t, int64(3), second.Block())
}

func TestEmptyRead(t *testing.T) {
	b := newTestBuffer(t, audio.Int16, 2)
	out := tagged(2, 64, 0.5)

	_, ok, err := b.ReadBlock(out)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, float32(0.5), out[0][0], "destination untouched")

	_, ok = b.ReadRaw(make([]byte, b.BlockBytes()))
	assert.False(t, ok)
	assert.Equal(t, int64(0), b.ReadTime().SampleIndex())
	assert.True(t, b.Ready(Fill))
}

func TestShapeMismatchClaimsNothing(t *testing.T) {
	b := newTestBuffer(t, audio.Int16, 2)

	ok, err := b.WriteBlock(tagged(1, 64, 0))
	assert.ErrorIs(t, err, audio.ErrSizeMismatch)
	assert.False(t, ok)

	ok, err = b.WriteBlock(tagged(2, 32, 0))
	assert.ErrorIs(t, err, audio.ErrSizeMismatch)
	assert.False(t, ok)

	_, ok, err = b.ReadBlock(audio.NewBlock(2, 63))
	assert.ErrorIs(t, err, audio.ErrSizeMismatch)
	assert.False(t, ok)

	assert.Equal(t, 0, b.Len())
	assert.True(t, b.Ready(Fill))
	assert.False(t, b.WriteRaw(make([]byte, 7)))
}

func TestRawAndFloatInterop(t *testing.T) {
	b := newTestBuffer(t, audio.Int24, 2)
	in := tagged(2, 64, 0.5)
	raw, err := audio.Pack(in, audio.Int24)
	require.NoError(t, err)

	require.True(t, b.WriteRaw(raw))
	out := audio.NewBlock(2, 64)
	_, ok, err := b.ReadBlock(out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)

	ok, err = b.WriteBlock(in)
	require.NoError(t, err)
	require.True(t, ok)
	dst := make([]byte, b.BlockBytes())
	stamp, ok := b.ReadRaw(dst)
	require.True(t, ok)
	assert.Equal(t, raw, dst)
	assert.Equal(t, int64(1), stamp.Block())
}

func TestRawPathDoesNotAllocate(t *testing.T) {
	b := newTestBuffer(t, audio.Int16, 4)
	block := make([]byte, b.BlockBytes())

	allocs := testing.AllocsPerRun(100, func() {
		b.WriteRaw(block)
		b.ReadRaw(block)
		b.Ready(Fill)
		b.Ready(Drain)
	})
	assert.Zero(t, allocs)
}

func TestConcurrentFIFO(t *testing.T) {
	const total = 5000
	b := newTestBuffer(t, audio.Float32, 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			ok, err := b.WriteBlock(tagged(2, 64, float32(i)))
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				i++
			}
		}
	}()

	out := audio.NewBlock(2, 64)
	for i := 0; i < total; {
		stamp, ok, err := b.ReadBlock(out)
		require.NoError(t, err)
		if !ok {
			continue
		}
		require.Equal(t, float32(i), out[0][0], "block %d out of order", i)
		require.Equal(t, float32(i), out[1][63])
		require.Equal(t, int64(i), stamp.Block())
		i++
	}
	wg.Wait()
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentRawProducer(t *testing.T) {
	const total = 2000
	b := newTestBuffer(t, audio.Int32, 3)

	blocks := make([][]byte, 4)
	for i := range blocks {
		raw, err := audio.Pack(tagged(2, 64, float32(i)/8), audio.Int32)
		require.NoError(t, err)
		blocks[i] = raw
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; {
			if b.WriteRaw(blocks[i%len(blocks)]) {
				i++
			}
		}
	}()

	out := audio.NewBlock(2, 64)
	for i := 0; i < total; {
		_, ok, err := b.ReadBlock(out)
		require.NoError(t, err)
		if ok {
			require.Equal(t, float32(i%len(blocks))/8, out[0][0])
			i++
		}
	}
	<-done
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "fill", Fill.String())
	assert.Equal(t, "drain", Drain.String())
}
