// ABOUTME: Simulated audio engine paced by a ticker
// ABOUTME: Drives the stream callback without hardware for tests and dry runs
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/stream"
)

// NullConfig configures the simulated device
type NullConfig struct {
	// SupportedRates restricts the accepted sample rates; empty accepts any
	SupportedRates []float64

	// Speed multiplies the callback rate relative to real time (0 means 1)
	Speed float64

	// Input fills each capture block; nil captures silence
	Input func(in []byte, hostTime float64)

	// Output observes each playback block after the callback filled it
	Output func(out []byte, hostTime float64)

	Logger *slog.Logger
}

// Null is a stream.Engine backed by a goroutine instead of a device
type Null struct {
	cfg    NullConfig
	logger *slog.Logger

	mu        sync.Mutex
	streamCfg stream.Config
	period    time.Duration
	cb        stream.Callback
	in        []byte
	out       []byte
	host      float64
	stop      chan struct{}
	done      chan struct{}
}

// NewNull creates a simulated engine
func NewNull(cfg NullConfig) *Null {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Null{cfg: cfg, logger: logger}
}

func (n *Null) Name() string { return "null" }

// Open checks the sample rate and allocates the simulated device buffers
func (n *Null) Open(cfg stream.Config, cb stream.Callback) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cb != nil {
		return fmt.Errorf("null engine already open")
	}
	if !n.rateSupported(cfg.SampleRate) {
		return fmt.Errorf("%w: %v Hz (supported: %v)", stream.ErrInvalidSampleRate, cfg.SampleRate, n.cfg.SupportedRates)
	}
	period := time.Duration(cfg.BlockDuration() / n.cfg.Speed * float64(time.Second))
	if period <= 0 {
		return fmt.Errorf("%w: block period of %d frames at %v Hz (speed %v) is below the timer resolution",
			stream.ErrInvalidConfig, cfg.BlockSize, cfg.SampleRate, n.cfg.Speed)
	}

	n.streamCfg = cfg
	n.period = period
	n.cb = cb
	n.in = make([]byte, cfg.InputBytes())
	n.out = make([]byte, cfg.OutputBytes())
	audio.FillSilence(n.in, cfg.Format)
	n.host = 0

	n.logger.Info("Audio engine initialized",
		"engine", n.Name(),
		"sample_rate", cfg.SampleRate,
		"block_size", cfg.BlockSize,
		"format", cfg.Format.String())
	return nil
}

func (n *Null) rateSupported(rate float64) bool {
	if len(n.cfg.SupportedRates) == 0 {
		return true
	}
	for _, r := range n.cfg.SupportedRates {
		if r == rate {
			return true
		}
	}
	return false
}

// Start launches the callback goroutine
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cb == nil {
		return fmt.Errorf("null engine not open")
	}
	if n.stop != nil {
		return nil
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.run(n.stop, n.done)
	return nil
}

func (n *Null) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	cfg := n.streamCfg
	ticker := time.NewTicker(n.period)
	defer ticker.Stop()

	in := channelsOrNil(n.in, cfg.InputChannels)
	out := channelsOrNil(n.out, cfg.OutputChannels)
	step := cfg.BlockDuration()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if in != nil && n.cfg.Input != nil {
			n.cfg.Input(in, n.host)
		}
		n.cb(out, in, cfg.BlockSize, n.host)
		if out != nil && n.cfg.Output != nil {
			n.cfg.Output(out, n.host)
		}
		n.host += step
	}
}

// Stop returns once the callback goroutine has exited
func (n *Null) Stop() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Close stops the engine if needed and releases its buffers
func (n *Null) Close() error {
	if err := n.Stop(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cb = nil
	n.in, n.out = nil, nil
	return nil
}
