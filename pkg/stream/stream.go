// ABOUTME: Stream callback bridge between a native engine and SampleBuffers
// ABOUTME: Runs the lifecycle state machine and counts underflows/overflows
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/buffer"
	"github.com/nocarryr/go-sounddevice/pkg/clock"
)

// DefaultPollInterval is how long WriteWait and ReadWait sleep between attempts
const DefaultPollInterval = 5 * time.Millisecond

// Stats is a snapshot of stream counters
type Stats struct {
	State          State
	Callbacks      uint64
	Underflows     uint64
	Overflows      uint64
	Frames         int64
	InputQueued    int
	InputCapacity  int
	OutputQueued   int
	OutputCapacity int
}

// Stream connects one engine to an input and/or output SampleBuffer
type Stream struct {
	id           uuid.UUID
	cfg          Config
	engine       Engine
	logger       *slog.Logger
	pollInterval time.Duration

	// lifecycle; never taken by the callback
	mu    sync.Mutex
	state atomic.Int32
	done  chan struct{}

	in  *buffer.SampleBuffer
	out *buffer.SampleBuffer

	callbacks  atomic.Uint64
	underflows atomic.Uint64
	overflows  atomic.Uint64
	frames     atomic.Int64
	startHost  atomic.Uint64

	timing   observation
	driftMu  sync.Mutex
	drift    *clock.DriftEstimator
	observed int64

	volume  atomic.Int32
	muted   atomic.Bool
	scratch [][]float32
}

// Option configures a Stream
type Option func(*Stream)

// WithLogger sets the stream's logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) { s.logger = logger }
}

// WithPollInterval sets the sleep between WriteWait/ReadWait attempts
func WithPollInterval(d time.Duration) Option {
	return func(s *Stream) { s.pollInterval = d }
}

// WithVolume sets the initial playback volume (0-100)
func WithVolume(volume int) Option {
	return func(s *Stream) { s.volume.Store(int32(clampVolume(volume))) }
}

// New validates cfg and creates a closed stream bound to engine
func New(cfg Config, engine Engine, opts ...Option) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", ErrInvalidConfig)
	}
	if cfg.BufferBlocks == 0 {
		cfg.BufferBlocks = buffer.DefaultBlocks
	}

	s := &Stream{
		id:           uuid.New(),
		cfg:          cfg,
		engine:       engine,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		done:         make(chan struct{}),
	}
	s.volume.Store(100)
	close(s.done)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("stream", s.id.String(), "engine", engine.Name())
	return s, nil
}

func (s *Stream) ID() uuid.UUID  { return s.id }
func (s *Stream) Config() Config { return s.cfg }
func (s *Stream) State() State   { return State(s.state.Load()) }

// Active reports whether the engine is invoking the callback
func (s *Stream) Active() bool {
	st := s.State()
	return st == StateOpen || st == StateRunning
}

// Done is closed when the stream reaches Closed
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// InputBuffer returns the capture buffer, nil before Open or without input channels
func (s *Stream) InputBuffer() *buffer.SampleBuffer { return s.in }

// OutputBuffer returns the playback buffer, nil before Open or without output channels
func (s *Stream) OutputBuffer() *buffer.SampleBuffer { return s.out }

// Open allocates the buffers, registers the callback and starts the engine.
// The stream becomes Running on the engine's first callback.
func (s *Stream) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateClosed {
		return fmt.Errorf("%w: cannot open a %s stream", ErrInvalidState, st)
	}

	if err := s.allocate(); err != nil {
		return err
	}

	s.done = make(chan struct{})
	s.state.Store(int32(StateOpen))

	if err := s.engine.Open(s.cfg, s.process); err != nil {
		s.abort()
		return fmt.Errorf("failed to open %s engine: %w", s.engine.Name(), err)
	}
	if err := s.engine.Start(); err != nil {
		if cerr := s.engine.Close(); cerr != nil {
			s.logger.Warn("engine close after failed start", "error", cerr)
		}
		s.abort()
		return fmt.Errorf("failed to start %s engine: %w", s.engine.Name(), err)
	}

	s.logger.Info("Stream opened",
		"sample_rate", s.cfg.SampleRate,
		"block_size", s.cfg.BlockSize,
		"format", s.cfg.Format.String(),
		"input_channels", s.cfg.InputChannels,
		"output_channels", s.cfg.OutputChannels,
		"buffer_blocks", s.cfg.BufferBlocks)
	return nil
}

func (s *Stream) allocate() error {
	s.in, s.out, s.scratch = nil, nil, nil
	if s.cfg.InputChannels > 0 {
		in, err := buffer.New(s.bufferConfig(s.cfg.InputChannels))
		if err != nil {
			return fmt.Errorf("failed to allocate input buffer: %w", err)
		}
		s.in = in
	}
	if s.cfg.OutputChannels > 0 {
		out, err := buffer.New(s.bufferConfig(s.cfg.OutputChannels))
		if err != nil {
			return fmt.Errorf("failed to allocate output buffer: %w", err)
		}
		s.out = out
		s.scratch = audio.NewBlock(s.cfg.OutputChannels, s.cfg.BlockSize)
	}

	s.callbacks.Store(0)
	s.underflows.Store(0)
	s.overflows.Store(0)
	s.frames.Store(0)
	s.startHost.Store(0)
	s.timing.reset()

	s.driftMu.Lock()
	s.drift = clock.NewDriftEstimator(s.cfg.SampleRate, s.logger)
	s.observed = -1
	s.driftMu.Unlock()
	return nil
}

func (s *Stream) bufferConfig(channels int) buffer.Config {
	return buffer.Config{
		Format:     s.cfg.Format,
		Channels:   channels,
		BlockSize:  s.cfg.BlockSize,
		Blocks:     s.cfg.BufferBlocks,
		SampleRate: s.cfg.SampleRate,
	}
}

// abort returns a stream that failed to open to Closed (must hold s.mu)
func (s *Stream) abort() {
	s.state.Store(int32(StateClosed))
	close(s.done)
}

// Stop requests Closing and returns once the engine has stopped invoking
// the callback and released the device. Stopping a closed stream is a no-op.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}
	s.state.Store(int32(StateClosing))

	var errs []error
	if err := s.engine.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop %s engine: %w", s.engine.Name(), err))
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s engine: %w", s.engine.Name(), err))
	}

	s.state.Store(int32(StateClosed))
	close(s.done)

	st := s.Stats()
	s.logger.Info("Stream closed",
		"callbacks", st.Callbacks,
		"underflows", st.Underflows,
		"overflows", st.Overflows)
	return errors.Join(errs...)
}

// Close implements io.Closer
func (s *Stream) Close() error {
	return s.Stop()
}

// process is the real-time callback. It must not block, allocate or log.
func (s *Stream) process(out, in []byte, frames int, hostTime float64) {
	st := State(s.state.Load())
	if st == StateOpen {
		if s.in != nil {
			s.in.SetTimeOffset(hostTime)
		}
		if s.out != nil {
			s.out.SetTimeOffset(hostTime)
		}
		s.startHost.Store(math.Float64bits(hostTime))
		s.state.CompareAndSwap(int32(StateOpen), int32(StateRunning))
		st = State(s.state.Load())
	}

	if st != StateRunning {
		if out != nil {
			audio.FillSilence(out, s.cfg.Format)
		}
		return
	}

	s.callbacks.Add(1)
	whole := frames == s.cfg.BlockSize

	if s.out != nil && out != nil {
		if !whole {
			audio.FillSilence(out, s.cfg.Format)
			s.underflows.Add(1)
		} else if _, ok := s.out.ReadRaw(out); !ok {
			audio.FillSilence(out, s.cfg.Format)
			s.underflows.Add(1)
		}
	}

	if s.in != nil && in != nil {
		if !whole || !s.in.WriteRaw(in) {
			s.overflows.Add(1)
			s.in.SkipWrite(frames)
		}
	}

	idx := s.frames.Add(int64(frames)) - int64(frames)
	s.timing.store(idx, hostTime)
}

// Stats returns a snapshot of the stream counters
func (s *Stream) Stats() Stats {
	st := Stats{
		State:      s.State(),
		Callbacks:  s.callbacks.Load(),
		Underflows: s.underflows.Load(),
		Overflows:  s.overflows.Load(),
		Frames:     s.frames.Load(),
	}
	if in := s.in; in != nil {
		st.InputQueued = in.Len()
		st.InputCapacity = in.Cap()
	}
	if out := s.out; out != nil {
		st.OutputQueued = out.Len()
		st.OutputCapacity = out.Cap()
	}
	return st
}

// StartTime returns the stream's zero position, offset by the engine's
// host time at the first callback
func (s *Stream) StartTime() clock.SampleTime {
	return clock.MustNew(s.cfg.SampleRate, s.cfg.BlockSize).
		WithTimeOffset(math.Float64frombits(s.startHost.Load()))
}

// Time returns the position of the next frame the engine will process
func (s *Stream) Time() clock.SampleTime {
	return s.StartTime().WithSampleIndex(s.frames.Load())
}
