// ABOUTME: Recorder polling a stream's input buffer until the end time
// ABOUTME: Sleeps between polls when no block is ready
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// DefaultPollInterval is the sleep between polls of an empty input buffer
const DefaultPollInterval = 100 * time.Millisecond

// DefaultTimeoutMargin is added to the duration before a recording times out
const DefaultTimeoutMargin = 2 * time.Second

var (
	// ErrAborted is returned when the stream stops before the recording completes
	ErrAborted = errors.New("stream aborted")

	// ErrTimeout is returned when the recording takes longer than its duration plus margin
	ErrTimeout = errors.New("record timeout")
)

// Recorder captures input blocks from a stream
type Recorder struct {
	stream        *stream.Stream
	logger        *slog.Logger
	pollInterval  time.Duration
	timeoutMargin time.Duration
	onBlock       func(clock.SampleTime, [][]float32)
}

// Option configures a Recorder
type Option func(*Recorder)

// WithLogger sets the recorder's logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithPollInterval sets the sleep between polls
func WithPollInterval(d time.Duration) Option {
	return func(r *Recorder) { r.pollInterval = d }
}

// WithTimeoutMargin sets how far past the duration a recording may run
func WithTimeoutMargin(d time.Duration) Option {
	return func(r *Recorder) { r.timeoutMargin = d }
}

// WithBlockHook registers fn to observe every captured block
func WithBlockHook(fn func(clock.SampleTime, [][]float32)) Option {
	return func(r *Recorder) { r.onBlock = fn }
}

// New creates a recorder for a stream with input channels
func New(s *stream.Stream, opts ...Option) (*Recorder, error) {
	if s.Config().InputChannels == 0 {
		return nil, fmt.Errorf("%w: recorder needs input channels", stream.ErrInvalidConfig)
	}
	r := &Recorder{
		stream:        s,
		logger:        slog.Default(),
		pollInterval:  DefaultPollInterval,
		timeoutMargin: DefaultTimeoutMargin,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record captures blocks until the end time for duration is reached.
// A closed stream is opened and stopped again afterwards; an active one
// is left running.
func (r *Recorder) Record(ctx context.Context, duration time.Duration) (*Recording, error) {
	cfg := r.stream.Config()
	start := clock.MustNew(cfg.SampleRate, cfg.BlockSize)
	end := start.EndTime(duration.Seconds())

	rec := newRecording(cfg, end)
	r.logger.Info("Recording",
		"id", rec.ID.String(),
		"duration", end.PaTime(),
		"blocks", end.Block())

	if r.stream.State() == stream.StateClosed {
		if err := r.stream.Open(); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.stream.Stop(); err != nil {
				r.logger.Warn("stream stop error", "error", err)
			}
		}()
	}

	deadline := time.Now().Add(time.Duration(end.PaTime()*float64(time.Second)) + r.timeoutMargin)
	current := start
	block := audio.NewBlock(cfg.InputChannels, cfg.BlockSize)

	for current.Before(end) {
		if !r.stream.Active() {
			return rec, ErrAborted
		}

		stamp, ok, err := r.stream.Read(block)
		if err != nil {
			return rec, err
		}
		if ok {
			rec.append(stamp, block)
			if r.onBlock != nil {
				r.onBlock(stamp, block)
			}
			current = current.AdvancedBlocks(1)
			continue
		}

		if time.Now().After(deadline) {
			return rec, fmt.Errorf("%w after %d of %d blocks", ErrTimeout, len(rec.Stamps), end.Block())
		}
		if err := r.sleep(ctx); err != nil {
			return rec, err
		}
	}

	rec.Complete = true
	r.logger.Info("Record complete",
		"id", rec.ID.String(),
		"blocks", len(rec.Stamps),
		"overflows", r.stream.Stats().Overflows)
	return rec, nil
}

func (r *Recorder) sleep(ctx context.Context) error {
	t := time.NewTimer(r.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newRecording preallocates storage for every block up to end
func newRecording(cfg stream.Config, end clock.SampleTime) *Recording {
	blocks := int(end.Block())
	rec := &Recording{
		ID:         uuid.New(),
		SampleRate: cfg.SampleRate,
		BlockSize:  cfg.BlockSize,
		Format:     cfg.Format,
		Started:    time.Now(),
		EndBlock:   end.Block(),
		Data:       make([][]float32, cfg.InputChannels),
		Stamps:     make([]Stamp, 0, blocks),
	}
	for ch := range rec.Data {
		rec.Data[ch] = make([]float32, 0, blocks*cfg.BlockSize)
	}
	return rec
}
