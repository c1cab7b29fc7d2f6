// ABOUTME: Oto-based playback engine
// ABOUTME: The oto player pulls bytes from a reader that invokes the stream callback per block
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// oto only allows one context per process
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
	otoFormat     oto.Format
)

// Oto engine implementation using oto library (playback only)
type Oto struct {
	logger *slog.Logger

	mu     sync.Mutex
	player *oto.Player
	reader *blockReader
}

// NewOto creates a new Oto engine
func NewOto(logger *slog.Logger) *Oto {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oto{logger: logger}
}

func (o *Oto) Name() string { return "oto" }

func otoFormatFor(f audio.SampleFormat) (oto.Format, error) {
	switch f {
	case audio.Float32:
		return oto.FormatFloat32LE, nil
	case audio.Int16:
		return oto.FormatSignedInt16LE, nil
	case audio.Uint8:
		return oto.FormatUnsignedInt8, nil
	default:
		return 0, fmt.Errorf("%w: %s (supported by oto: float32, int16, uint8)", audio.ErrUnsupportedFormat, f)
	}
}

// sharedContext returns the process-wide oto context, creating it on first use
func sharedContext(cfg stream.Config, format oto.Format, logger *slog.Logger) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	rate := int(cfg.SampleRate)
	if otoCtx != nil {
		if otoSampleRate != rate {
			// oto cannot be reinitialized with a new rate
			return nil, fmt.Errorf("%w: oto context already running at %d Hz", stream.ErrInvalidSampleRate, otoSampleRate)
		}
		if otoChannels != cfg.OutputChannels || otoFormat != format {
			return nil, fmt.Errorf("oto context already running with %d channels, format %d", otoChannels, otoFormat)
		}
		logger.Debug("Audio output already initialized with same format, reusing context")
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: cfg.OutputChannels,
		Format:       format,
		BufferSize:   time.Duration(2 * cfg.BlockDuration() * float64(time.Second)),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoSampleRate = rate
	otoChannels = cfg.OutputChannels
	otoFormat = format
	return ctx, nil
}

// Open creates (or reuses) the oto context and a player pulling from the stream
func (o *Oto) Open(cfg stream.Config, cb stream.Callback) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("oto player already open")
	}
	if cfg.InputChannels > 0 {
		return fmt.Errorf("oto engine is playback only (requested %d input channels)", cfg.InputChannels)
	}
	if float64(int(cfg.SampleRate)) != cfg.SampleRate {
		return fmt.Errorf("%w: %v Hz", stream.ErrInvalidSampleRate, cfg.SampleRate)
	}
	format, err := otoFormatFor(cfg.Format)
	if err != nil {
		return err
	}

	ctx, err := sharedContext(cfg, format, o.logger)
	if err != nil {
		return err
	}

	o.reader = &blockReader{
		cb:     cb,
		block:  make([]byte, cfg.OutputBytes()),
		frames: cfg.BlockSize,
	}
	o.reader.pos = len(o.reader.block)
	o.player = ctx.NewPlayer(o.reader)
	o.player.SetBufferSize(cfg.OutputBytes())

	o.logger.Info("Audio engine initialized",
		"engine", o.Name(),
		"sample_rate", cfg.SampleRate,
		"channels", cfg.OutputChannels,
		"format", cfg.Format.String())
	return nil
}

// Start begins playback; oto starts pulling from the reader
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return fmt.Errorf("oto player not open")
	}
	o.reader.start()
	o.player.Play()
	return nil
}

// Stop pauses the player and waits out any in-flight callback
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.player.Pause()
	o.reader.stop()
	return nil
}

// Close releases the player; the shared context stays suspended for reuse
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.reader.stop()
	err := o.player.Close()
	o.player = nil
	o.reader = nil

	otoMu.Lock()
	if otoCtx != nil {
		if serr := otoCtx.Suspend(); serr != nil {
			o.logger.Warn("oto context suspend error", "error", serr)
		}
	}
	otoMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

// blockReader adapts the per-block callback to oto's pull model.
// oto reads arbitrary byte counts; whole blocks are produced on demand.
type blockReader struct {
	cb      stream.Callback
	block   []byte
	pos     int
	frames  int
	started time.Time

	// held only while a callback runs and once by stop
	mu      sync.Mutex
	stopped atomic.Bool
}

func (r *blockReader) start() {
	r.mu.Lock()
	r.started = time.Now()
	r.stopped.Store(false)
	r.mu.Unlock()
}

func (r *blockReader) stop() {
	r.stopped.Store(true)
	// wait for an in-flight callback
	r.mu.Lock()
	r.mu.Unlock() //nolint:staticcheck // empty critical section is the barrier
}

func (r *blockReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.pos == len(r.block) {
			if !r.fill() {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
		}
		c := copy(p[n:], r.block[r.pos:])
		r.pos += c
		n += c
	}
	return n, nil
}

func (r *blockReader) fill() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped.Load() {
		return false
	}
	r.cb(r.block, nil, r.frames, time.Since(r.started).Seconds())
	r.pos = 0
	return true
}
