// ABOUTME: Block playback loop with end-time and stats tracking
// ABOUTME: Waits for the output buffer to drain before reporting completion
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/audio/resample"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/nocarryr/go-sounddevice/pkg/source"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// Stats tracks playback metrics
type Stats struct {
	Written    int64
	Dropped    int64
	Underflows uint64
}

// Config controls a Player
type Config struct {
	// Duration stops playback at the first block boundary past it; zero plays to EOF
	Duration time.Duration
	// Quality of the resampler when the source rate differs from the stream's
	Quality resample.Quality
	Logger  *slog.Logger
}

// Player writes a source's blocks to a stream
type Player struct {
	stream *stream.Stream
	src    source.Source
	cfg    Config
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	written atomic.Int64
	dropped atomic.Int64
	level   atomic.Uint64
	pos     atomic.Int64
}

// New creates a player for a stream with output channels. The source is
// converted to the stream's sample rate and channel count.
func New(s *stream.Stream, src source.Source, cfg Config) (*Player, error) {
	sc := s.Config()
	if sc.OutputChannels == 0 {
		return nil, fmt.Errorf("%w: player needs output channels", stream.ErrInvalidConfig)
	}
	converted, err := source.Convert(src, sc.SampleRate, sc.OutputChannels, cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to convert source %q: %w", src.Name(), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		stream: s,
		src:    converted,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// EndTime returns the position where playback stops, or the zero value
// when it plays to EOF
func (p *Player) EndTime() clock.SampleTime {
	if p.cfg.Duration <= 0 {
		return clock.SampleTime{}
	}
	sc := p.stream.Config()
	return clock.MustNew(sc.SampleRate, sc.BlockSize).EndTime(p.cfg.Duration.Seconds())
}

// Run plays until the source ends, the end time is reached, ctx is done or
// Stop is called, then waits for queued blocks to play out.
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	sc := p.stream.Config()
	end := p.EndTime()
	current := clock.MustNew(sc.SampleRate, sc.BlockSize)
	block := audio.NewBlock(sc.OutputChannels, sc.BlockSize)

	p.logger.Info("Playback started",
		"source", p.src.Name(),
		"sample_rate", sc.SampleRate,
		"channels", sc.OutputChannels,
		"duration", p.cfg.Duration)

	for end.IsZero() || current.Before(end) {
		n, err := source.ReadFull(p.src, block)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}

		p.level.Store(math.Float64bits(audio.RMS(block[0])))
		if err := p.stream.WriteWait(ctx, block); err != nil {
			p.dropped.Add(1)
			if errors.Is(err, context.Canceled) && p.ctx.Err() != nil {
				p.logger.Info("Playback stopped", "written", p.written.Load())
				return nil
			}
			return err
		}
		p.written.Add(1)
		current = current.AdvancedSamples(int64(n))
		p.pos.Store(current.SampleIndex())
		if n < sc.BlockSize {
			break
		}
	}

	if err := p.drain(ctx); err != nil {
		return err
	}
	p.logger.Info("Playback complete",
		"written", p.written.Load(),
		"underflows", p.stream.Stats().Underflows)
	return nil
}

// drain waits until the output buffer is empty
func (p *Player) drain(ctx context.Context) error {
	out := p.stream.OutputBuffer()
	if out == nil {
		return nil
	}
	ticker := time.NewTicker(time.Duration(p.stream.Config().BlockDuration() * float64(time.Second)))
	defer ticker.Stop()
	for out.Len() > 0 {
		select {
		case <-ticker.C:
		case <-p.stream.Done():
			return nil
		case <-ctx.Done():
			if p.ctx.Err() != nil {
				return nil
			}
			return ctx.Err()
		}
	}
	return nil
}

// Stop ends playback
func (p *Player) Stop() {
	p.cancel()
}

// Stats returns player statistics
func (p *Player) Stats() Stats {
	return Stats{
		Written:    p.written.Load(),
		Dropped:    p.dropped.Load(),
		Underflows: p.stream.Stats().Underflows,
	}
}

// Level returns the RMS of the first channel of the last queued block
func (p *Player) Level() float64 {
	return math.Float64frombits(p.level.Load())
}

// Position returns how far into the source playback has queued
func (p *Player) Position() clock.SampleTime {
	sc := p.stream.Config()
	return clock.MustNew(sc.SampleRate, sc.BlockSize).WithSampleIndex(p.pos.Load())
}

// Close closes the source
func (p *Player) Close() error {
	p.cancel()
	return p.src.Close()
}
